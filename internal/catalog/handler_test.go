package catalog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type memoryCatalogRepo struct {
	modules  []Module
	sections map[int64][]Section
}

func (r *memoryCatalogRepo) ListModules(ctx context.Context) ([]Module, error) {
	return r.modules, nil
}

func (r *memoryCatalogRepo) GetModule(ctx context.Context, id int64) (Module, error) {
	for _, m := range r.modules {
		if m.ID == id {
			return m, nil
		}
	}
	return Module{}, ErrNotFound
}

func (r *memoryCatalogRepo) ListSections(ctx context.Context, moduleID int64) ([]Section, error) {
	return r.sections[moduleID], nil
}

func (r *memoryCatalogRepo) ListModulesWithSections(ctx context.Context) ([]ModuleWithSections, error) {
	out := make([]ModuleWithSections, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, ModuleWithSections{Module: m, Sections: r.sections[m.ID]})
	}
	return out, nil
}

func (r *memoryCatalogRepo) SectionInModule(ctx context.Context, sectionID, moduleID int64) (bool, error) {
	for _, s := range r.sections[moduleID] {
		if s.ID == sectionID {
			return true, nil
		}
	}
	return false, nil
}

func newCatalogRouter() http.Handler {
	repo := &memoryCatalogRepo{
		modules: []Module{{ID: 1, Title: "Operations"}, {ID: 4, Title: "Equipment"}},
		sections: map[int64][]Section{
			1: {{ID: 301, ModuleID: 1, Title: "Shift Handover", SortOrder: 1}},
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(repo))
	r := chi.NewRouter()
	r.Route("/modules", func(r chi.Router) { h.MountRoutes(r) })
	return r
}

func TestListModules(t *testing.T) {
	router := newCatalogRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/modules/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out []moduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	require.Equal(t, "Operations", out[0].Title)
}

func TestListSections(t *testing.T) {
	router := newCatalogRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/modules/1/sections", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out []sectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	require.Equal(t, int64(301), out[0].ID)
}

func TestListSectionsUnknownModule(t *testing.T) {
	router := newCatalogRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/modules/99/sections", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSectionsBadModuleID(t *testing.T) {
	router := newCatalogRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/modules/abc/sections", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
