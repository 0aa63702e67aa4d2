package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"consultas-gateway/internal/handlers"
	"consultas-gateway/internal/metrics"
	"consultas-gateway/internal/middleware"
	"consultas-gateway/internal/routes"
)

// Options configures the router.
type Options struct {
	Routes         routes.Table
	Consulta       *handlers.ConsultaHandler
	Admin          *handlers.AdminHandler
	AdminToken     string
	RequestTimeout time.Duration // default: 35s
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, opts Options) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 35 * time.Second
	}

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.MaxBodySize(64 * 1024)) // consultas are GETs

	// one GET per table entry
	for _, route := range opts.Routes {
		r.Get(route.Path, opts.Consulta.Route(route))
	}

	r.Get("/routes", opts.Admin.ListRoutes)

	r.Route("/admin/cache", func(r chi.Router) {
		r.Use(middleware.AdminToken(opts.AdminToken))
		r.Get("/stats", opts.Admin.Stats)
		r.Delete("/", opts.Admin.Clear)
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
