package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"consultas-gateway/internal/blobstore"
	"consultas-gateway/pkg/logging/logging"
)

type outcomes struct {
	mu  sync.Mutex
	all []Outcome
}

func (o *outcomes) add(out Outcome) {
	o.mu.Lock()
	o.all = append(o.all, out)
	o.mu.Unlock()
}

func (o *outcomes) list() []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Outcome(nil), o.all...)
}

func testCtx(t *testing.T) context.Context {
	return logging.WithLogger(context.Background(), zaptest.NewLogger(t))
}

func persistAll(t *testing.T, store blobstore.Store, media *Downloader, req Request, bodies ...string) []Outcome {
	t.Helper()
	var got outcomes
	p := NewPersister(store, media, PersisterConfig{Workers: 1, OnDone: got.add})
	for _, b := range bodies {
		require.True(t, p.Submit(testCtx(t), req, []byte(b)))
	}
	require.NoError(t, p.Close(context.Background()))
	return got.list()
}

func TestPersistRoundTrip(t *testing.T) {
	store := blobstore.NewMemoryStore()
	req := dniRequest("12345678")
	body := `{"dni":"12345678","nombres":"ANA","apellidos":["PEREZ","DIAZ"]}`

	outs := persistAll(t, store, nil, req, body)
	require.Len(t, outs, 1)
	require.NoError(t, outs[0].Err)
	assert.Equal(t, KindJSON, outs[0].Kind)
	assert.True(t, strings.HasPrefix(outs[0].Key, "consultas/dni/dni_12345678_"))

	entry, ok := NewLookup(store, LookupConfig{}).Find(context.Background(), req)
	require.True(t, ok)
	assert.JSONEq(t, body, string(entry.Value()))
	assert.Equal(t, "application/json", entry.ContentType)
}

func TestPersistTwiceKeepsBothAndLookupReturnsLatest(t *testing.T) {
	store := blobstore.NewMemoryStoreWithClock(steppingClock())
	req := dniRequest("12345678")

	outs := persistAll(t, store, nil, req, `{"n":1}`, `{"n":2}`)
	require.Len(t, outs, 2)
	assert.NotEqual(t, outs[0].Key, outs[1].Key)
	assert.Equal(t, 2, store.Len())

	entry, ok := NewLookup(store, LookupConfig{}).Find(context.Background(), req)
	require.True(t, ok)
	assert.JSONEq(t, `{"n":2}`, string(entry.Value()))
}

func TestPersistClassification(t *testing.T) {
	srv := newMediaServer(t)
	media := NewDownloader(srv.Client(), time.Second, 1024)
	req := Request{Route: "/foto", ParamName: "dni", ParamValue: "12345678"}

	tests := []struct {
		name        string
		body        string
		kind        Kind
		keyPart     string
		contentType string
		payload     string
	}{
		{name: "image", body: `"` + srv.URL + `/img.png"`, kind: KindMedia, keyPart: "consultas/foto/media/dni_12345678_", contentType: "image/png", payload: "\x89PNG-bytes"},
		{name: "pdf", body: `"` + srv.URL + `/doc.pdf"`, kind: KindMedia, keyPart: "consultas/foto/media/dni_12345678_", contentType: "application/pdf", payload: "%PDF-1.4"},
		{name: "unknown url", body: `"https://x.test/unknown"`, kind: KindJSON, keyPart: "consultas/foto/dni_12345678_", contentType: "application/json", payload: `{"url":"https://x.test/unknown"}`},
		{name: "text", body: `"hello"`, kind: KindJSON, keyPart: "consultas/foto/dni_12345678_", contentType: "application/json", payload: `{"text":"hello"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			outs := persistAll(t, store, media, req, tt.body)
			require.Len(t, outs, 1)
			out := outs[0]
			require.NoError(t, out.Err)
			assert.Equal(t, tt.kind, out.Kind)
			assert.True(t, strings.HasPrefix(out.Key, tt.keyPart), out.Key)

			list, err := store.List(context.Background(), out.Key, 0)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, tt.contentType, list[0].ContentType)
			assert.Equal(t, "12345678", list[0].Metadata["param_value"])

			got, err := store.Get(context.Background(), out.Key)
			require.NoError(t, err)
			if tt.kind == KindJSON {
				assert.JSONEq(t, tt.payload, string(got))
			} else {
				assert.Equal(t, tt.payload, string(got))
			}
		})
	}

	t.Run("media extension", func(t *testing.T) {
		outs := persistAll(t, blobstore.NewMemoryStore(), media, req, `"`+srv.URL+`/img.png"`)
		assert.True(t, strings.HasSuffix(outs[0].Key, ".png"))
		outs = persistAll(t, blobstore.NewMemoryStore(), media, req, `"`+srv.URL+`/doc.pdf"`)
		assert.True(t, strings.HasSuffix(outs[0].Key, ".pdf"))
	})
}

func TestPersistDownloadFailureStoresNothing(t *testing.T) {
	srv := newMediaServer(t)
	media := NewDownloader(srv.Client(), time.Second, 1024)
	store := blobstore.NewMemoryStore()

	outs := persistAll(t, store, media, dniRequest("1"),
		`"`+srv.URL+`/missing.pdf"`,
		`"`+srv.URL+`/big.png"`,
	)
	require.Len(t, outs, 2)
	for _, out := range outs {
		assert.Error(t, out.Err)
		assert.Empty(t, out.Key)
	}
	assert.ErrorIs(t, outs[1].Err, ErrMediaTooLarge)
	assert.Equal(t, 0, store.Len())
}

func TestPersistStoreFailureIsReported(t *testing.T) {
	outs := persistAll(t, &brokenStore{}, nil, dniRequest("1"), `{"a":1}`)
	require.Len(t, outs, 1)
	assert.EqualError(t, outs[0].Err, "store offline")
}

func TestPersistNilStoreIsNoop(t *testing.T) {
	p := NewPersister(nil, nil, PersisterConfig{})
	assert.False(t, p.Submit(testCtx(t), dniRequest("1"), []byte(`{}`)))
	require.NoError(t, p.Close(context.Background()))
}

func TestPersistRejectsAfterClose(t *testing.T) {
	var got outcomes
	p := NewPersister(blobstore.NewMemoryStore(), nil, PersisterConfig{OnDone: got.add})
	require.NoError(t, p.Close(context.Background()))

	assert.False(t, p.Submit(testCtx(t), dniRequest("1"), []byte(`{}`)))
	outs := got.list()
	require.Len(t, outs, 1)
	assert.ErrorIs(t, outs[0].Err, ErrPersisterClosed)
}

// gatedStore blocks every Put until release is closed.
type gatedStore struct {
	*blobstore.MemoryStore
	started chan struct{}
	release chan struct{}
}

func (g *gatedStore) Put(ctx context.Context, obj blobstore.Object) error {
	g.started <- struct{}{}
	<-g.release
	return g.MemoryStore.Put(ctx, obj)
}

func TestPersistQueueFullDrops(t *testing.T) {
	store := &gatedStore{
		MemoryStore: blobstore.NewMemoryStore(),
		started:     make(chan struct{}, 8),
		release:     make(chan struct{}),
	}
	p := NewPersister(store, nil, PersisterConfig{Workers: 1, QueueSize: 1})
	ctx := testCtx(t)

	// first task occupies the only worker
	require.True(t, p.Submit(ctx, dniRequest("1"), []byte(`{}`)))
	<-store.started

	// second is taken off the queue by the dispatcher, which then waits for the worker
	require.True(t, p.Submit(ctx, dniRequest("2"), []byte(`{}`)))
	require.Eventually(t, func() bool { return p.Pending() == 0 }, time.Second, time.Millisecond)

	// third fills the queue, fourth is dropped
	require.True(t, p.Submit(ctx, dniRequest("3"), []byte(`{}`)))
	assert.False(t, p.Submit(ctx, dniRequest("4"), []byte(`{}`)))

	close(store.release)
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, 3, store.Len())
}
