package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-training/meridian/internal/access"
	"github.com/meridian-training/meridian/internal/catalog"
	"github.com/meridian-training/meridian/internal/importer"
	"github.com/meridian-training/meridian/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AccessHandler  *access.Handler
	ImportHandler  *importer.Handler
	CatalogHandler *catalog.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/roleaccess", params.AccessHandler.MountRoutes)
	r.Route("/roleimport", params.ImportHandler.MountRoutes)
	if params.CatalogHandler != nil {
		r.Route("/modules", params.CatalogHandler.MountRoutes)
	}

	return r
}
