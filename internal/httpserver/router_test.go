package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"consultas-gateway/internal/blobstore"
	"consultas-gateway/internal/cache"
	"consultas-gateway/internal/gateway"
	"consultas-gateway/internal/handlers"
	"consultas-gateway/internal/routes"
	"consultas-gateway/internal/upstream"
)

type stack struct {
	expect    *httpexpect.Expect
	store     *blobstore.MemoryStore
	upstreams *atomic.Int32
	persisted chan cache.Outcome
}

// newStack runs the full gateway against a fake data API.
func newStack(t *testing.T, adminToken string) *stack {
	t.Helper()
	logger := zaptest.NewLogger(t)

	var calls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/dni":
			if r.URL.Query().Get("dni") == "00000000" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"message":"DNI no encontrado"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"dni":"` + r.URL.Query().Get("dni") + `","nombres":"ANA"}`))
		case "/licencia":
			_, _ = w.Write([]byte(`"sin licencia"`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(api.Close)

	client, err := upstream.NewClient(upstream.Config{BaseURL: api.URL}, logger)
	require.NoError(t, err)

	store := blobstore.NewMemoryStore()
	persisted := make(chan cache.Outcome, 16)
	persister := cache.NewPersister(store, nil, cache.PersisterConfig{OnDone: func(o cache.Outcome) { persisted <- o }})
	t.Cleanup(func() { _ = persister.Close(context.Background()) })

	table := routes.Table{
		{Path: "/dni", Upstream: "/dni", Required: []string{"dni"}},
		{Path: "/licencia", Upstream: "/licencia", OneOf: []string{"dni", "licencia"}},
	}
	coord := gateway.NewCoordinator(cache.NewLookup(store, cache.LookupConfig{}), client, persister)

	r := chi.NewRouter()
	SetupRouter(r, logger, Options{
		Routes:         table,
		Consulta:       handlers.NewConsultaHandler(coord),
		Admin:          handlers.NewAdminHandler(cache.NewAdmin(store), table),
		AdminToken:     adminToken,
		RequestTimeout: 5 * time.Second,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &stack{
		expect: httpexpect.WithConfig(httpexpect.Config{
			BaseURL:  srv.URL,
			Reporter: httpexpect.NewRequireReporter(t),
			Client:   srv.Client(),
		}),
		store:     store,
		upstreams: &calls,
		persisted: persisted,
	}
}

func TestConsultaMissThenHit(t *testing.T) {
	s := newStack(t, "")

	s.expect.GET("/dni").WithQuery("dni", "12345678").
		Expect().
		Status(http.StatusOK).
		JSON().Object().HasValue("dni", "12345678").HasValue("nombres", "ANA")

	out := <-s.persisted
	require.NoError(t, out.Err)

	s.expect.GET("/dni").WithQuery("dni", "12345678").
		Expect().
		Status(http.StatusOK).
		JSON().Object().HasValue("nombres", "ANA")

	require.EqualValues(t, 1, s.upstreams.Load())
	require.Equal(t, 1, s.store.Len())
}

func TestConsultaMissingParameter(t *testing.T) {
	s := newStack(t, "")

	obj := s.expect.GET("/dni").
		Expect().
		Status(http.StatusBadRequest).
		JSON().Object()
	obj.HasValue("success", false)
	obj.Value("message").String().Contains("dni")

	require.Zero(t, s.upstreams.Load())
}

func TestConsultaUpstreamNotFound(t *testing.T) {
	s := newStack(t, "")

	obj := s.expect.GET("/dni").WithQuery("dni", "00000000").
		Expect().
		Status(http.StatusNotFound).
		JSON().Object()
	obj.HasValue("success", false)
	obj.HasValue("message", "DNI no encontrado")
	obj.Value("detalle").Object().HasValue("message", "DNI no encontrado")

	require.Zero(t, s.store.Len())
}

func TestConsultaOneOf(t *testing.T) {
	s := newStack(t, "")

	s.expect.GET("/licencia").WithQuery("licencia", "Q1").
		Expect().
		Status(http.StatusOK).
		JSON().String().IsEqual("sin licencia")

	out := <-s.persisted
	require.NoError(t, out.Err)
	require.Equal(t, "licencia", out.Task.Request.ParamName)

	s.expect.GET("/licencia").
		Expect().
		Status(http.StatusBadRequest).
		JSON().Object().Value("message").String().Contains("dni, licencia")
}

func TestAdminRoutes(t *testing.T) {
	s := newStack(t, "s3cret")

	s.expect.GET("/dni").WithQuery("dni", "12345678").Expect().Status(http.StatusOK)
	<-s.persisted

	s.expect.GET("/admin/cache/stats").Expect().Status(http.StatusUnauthorized)

	stats := s.expect.GET("/admin/cache/stats").
		WithHeader("X-Admin-Token", "s3cret").
		Expect().
		Status(http.StatusOK).
		JSON().Object()
	stats.Value("total").Object().HasValue("objects", 1)
	stats.Value("endpoints").Object().ContainsKey("dni")

	s.expect.DELETE("/admin/cache").
		WithHeader("X-Admin-Token", "s3cret").
		Expect().
		Status(http.StatusOK).
		JSON().Object().HasValue("deleted", 1)

	require.Zero(t, s.store.Len())
}

func TestInfraRoutes(t *testing.T) {
	s := newStack(t, "")

	s.expect.GET("/healthz").Expect().Status(http.StatusOK).Body().IsEqual("ok")
	s.expect.GET("/metrics").Expect().Status(http.StatusOK)
	s.expect.GET("/routes").
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("routes").Array().Length().IsEqual(2)
	s.expect.GET("/nope").Expect().Status(http.StatusNotFound)
}
