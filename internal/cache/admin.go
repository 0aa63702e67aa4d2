package cache

import (
	"context"
	"errors"
	"sort"
	"strings"

	"consultas-gateway/internal/blobstore"
)

// ErrNoStore is returned by admin operations when caching is disabled.
var ErrNoStore = errors.New("cache store not configured")

// Usage counts objects and bytes.
type Usage struct {
	Objects int   `json:"objects"`
	Bytes   int64 `json:"bytes"`
}

func (u *Usage) add(size int64) {
	u.Objects++
	u.Bytes += size
}

// EndpointStats splits an endpoint's usage by stored type.
type EndpointStats struct {
	JSON  Usage `json:"json"`
	Media Usage `json:"media"`
}

// Stats summarises everything stored under Root.
type Stats struct {
	Total     Usage                    `json:"total"`
	Endpoints map[string]EndpointStats `json:"endpoints"`
}

// Admin exposes read-only statistics and the bulk clear over the store.
type Admin struct {
	store blobstore.Store
}

// NewAdmin returns an Admin over store. A nil store yields ErrNoStore.
func NewAdmin(store blobstore.Store) *Admin {
	return &Admin{store: store}
}

// Stats lists every stored consulta. The listing is not capped.
func (a *Admin) Stats(ctx context.Context) (Stats, error) {
	if a.store == nil {
		return Stats{}, ErrNoStore
	}
	objects, err := a.store.List(ctx, Root+"/", 0)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Endpoints: make(map[string]EndpointStats)}
	for _, obj := range objects {
		endpoint, media := splitKey(obj.Key)
		es := st.Endpoints[endpoint]
		if media {
			es.Media.add(obj.Size)
		} else {
			es.JSON.add(obj.Size)
		}
		st.Endpoints[endpoint] = es
		st.Total.add(obj.Size)
	}
	return st, nil
}

// Clear removes every stored consulta and returns how many objects went.
func (a *Admin) Clear(ctx context.Context) (int, error) {
	if a.store == nil {
		return 0, ErrNoStore
	}
	objects, err := a.store.List(ctx, Root+"/", 0)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, nil
	}

	keys := make([]string, len(objects))
	for i, o := range objects {
		keys[i] = o.Key
	}
	sort.Strings(keys)
	return a.store.Delete(ctx, keys)
}

// splitKey maps consultas/<endpoint>/[media/]<file> to its endpoint and type.
func splitKey(key string) (endpoint string, media bool) {
	parts := strings.Split(strings.TrimPrefix(key, Root+"/"), "/")
	if len(parts) < 2 {
		return "_other", false
	}
	return parts[0], len(parts) > 2 && parts[1] == "media"
}
