package cache

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"consultas-gateway/internal/blobstore"
	"consultas-gateway/internal/metrics"
	"consultas-gateway/pkg/logging/logging"
)

// DefaultListLimit caps how many objects a lookup lists under a route prefix.
const DefaultListLimit = 1000

// Entry is a stored consulta found by a lookup.
type Entry struct {
	Key         string
	CreatedAt   time.Time
	ContentType string
	Payload     []byte

	// Opaque is set when Payload is not JSON (media, legacy or corrupt
	// entries). Callers hand back the raw bytes instead of a decoded value.
	Opaque bool
}

// Value returns the payload as JSON, or nil for opaque entries.
func (e *Entry) Value() json.RawMessage {
	if e == nil || e.Opaque {
		return nil
	}
	return json.RawMessage(e.Payload)
}

// LookupConfig tunes how Find lists and matches stored objects.
type LookupConfig struct {
	// ListLimit bounds each prefix listing (default DefaultListLimit).
	ListLimit int

	// StrictMatch only accepts keys whose file name starts with
	// <paramName>_<sanitized value>_ and lists only those names. The default
	// substring match also accepts any key, key value segment or stored
	// param_value that merely contains the value.
	StrictMatch bool
}

// Lookup finds the most recent stored result for a Request.
type Lookup struct {
	store blobstore.Store
	cfg   LookupConfig
}

// NewLookup returns a lookup over store. A nil store makes every lookup a miss.
func NewLookup(store blobstore.Store, cfg LookupConfig) *Lookup {
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = DefaultListLimit
	}
	return &Lookup{store: store, cfg: cfg}
}

// Find returns the newest matching entry. Store failures are logged and
// reported as a miss: cache trouble never blocks the upstream path.
func (l *Lookup) Find(ctx context.Context, req Request) (*Entry, bool) {
	if l == nil || l.store == nil {
		return nil, false
	}
	logger := logging.L(ctx).With(
		zap.String("route", req.Route),
		zap.String("param_name", req.ParamName),
	)

	var objects []blobstore.ObjectInfo
	for _, prefix := range l.prefixes(req) {
		listed, err := l.store.List(ctx, prefix, l.cfg.ListLimit)
		if err != nil {
			metrics.CacheLookupsTotal.WithLabelValues(req.Route, "error").Inc()
			logger.Warn("cache_list_error", zap.String("prefix", prefix), zap.Error(err))
			return nil, false
		}
		objects = append(objects, listed...)
	}

	var best *blobstore.ObjectInfo
	for i := range objects {
		obj := &objects[i]
		if !l.matches(obj, req) {
			continue
		}
		if best == nil || newer(obj, best) {
			best = obj
		}
	}
	if best == nil {
		metrics.CacheLookupsTotal.WithLabelValues(req.Route, "miss").Inc()
		return nil, false
	}

	payload, err := l.store.Get(ctx, best.Key)
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues(req.Route, "error").Inc()
		logger.Warn("cache_get_error", zap.String("key", best.Key), zap.Error(err))
		return nil, false
	}

	entry := &Entry{
		Key:         best.Key,
		CreatedAt:   best.CreatedAt,
		ContentType: best.ContentType,
		Payload:     payload,
		Opaque:      !json.Valid(payload),
	}
	if entry.ContentType == "" {
		entry.ContentType = contentTypeForKey(best.Key)
	}
	if entry.Opaque {
		logger.Debug("cache_entry_opaque", zap.String("key", best.Key), zap.String("content_type", entry.ContentType))
	}

	metrics.CacheLookupsTotal.WithLabelValues(req.Route, "hit").Inc()
	return entry, true
}

// prefixes returns the listings a lookup reads. Strict mode narrows them to
// the request's own file names, JSON and media.
func (l *Lookup) prefixes(req Request) []string {
	prefix := RoutePrefix(req.Route)
	if !l.cfg.StrictMatch {
		return []string{prefix}
	}
	base := req.ParamName + "_" + SanitizeValue(req.ParamValue) + "_"
	return []string{prefix + base, prefix + "media/" + base}
}

func (l *Lookup) matches(obj *blobstore.ObjectInfo, req Request) bool {
	if l.cfg.StrictMatch {
		return strings.HasPrefix(path.Base(obj.Key), req.ParamName+"_"+SanitizeValue(req.ParamValue)+"_")
	}

	needle := strings.ToLower(req.ParamValue)
	if needle == "" {
		return false
	}
	if strings.Contains(strings.ToLower(obj.Key), needle) {
		return true
	}
	// Keys only hold the sanitized value, and some backends list no metadata.
	if seg := valueSegment(obj.Key, req.ParamName); seg != "" &&
		strings.Contains(strings.ToLower(seg), strings.ToLower(SanitizeValue(req.ParamValue))) {
		return true
	}
	return strings.Contains(strings.ToLower(obj.Metadata["param_value"]), needle)
}

// valueSegment extracts <value> from .../<paramName>_<value>_<ms>.<ext>, or
// returns "" when the key does not have that shape.
func valueSegment(key, paramName string) string {
	base := path.Base(key)
	if !strings.HasPrefix(base, paramName+"_") {
		return ""
	}
	rest := base[len(paramName)+1:]
	i := strings.LastIndexByte(rest, '_')
	if i < 0 {
		return ""
	}
	return rest[:i]
}

// newer orders by store creation time, then by key (keys embed a monotonic stamp).
func newer(a, b *blobstore.ObjectInfo) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.Key > b.Key
	}
	return a.CreatedAt.After(b.CreatedAt)
}
