package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-training/meridian/internal/platform/httpx"
)

// Handler serves the read-only catalog endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listModules)
	r.Get("/{moduleID}/sections", h.listSections)
}

type moduleResponse struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type sectionResponse struct {
	ID          int64  `json:"id"`
	ModuleID    int64  `json:"moduleId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"order"`
}

func (h *Handler) listModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.service.ListModules(r.Context())
	if err != nil {
		h.logger.Error("list modules", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]moduleResponse, 0, len(modules))
	for _, m := range modules {
		out = append(out, moduleResponse{ID: m.ID, Title: m.Title})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listSections(w http.ResponseWriter, r *http.Request) {
	moduleID, err := strconv.ParseInt(chi.URLParam(r, "moduleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "module id must be numeric")
		return
	}
	sections, err := h.service.ListSections(r.Context(), moduleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "module not found")
			return
		}
		h.logger.Error("list sections", slog.Int64("module_id", moduleID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]sectionResponse, 0, len(sections))
	for _, s := range sections {
		out = append(out, sectionResponse{ID: s.ID, ModuleID: s.ModuleID, Title: s.Title, Description: s.Description, SortOrder: s.SortOrder})
	}
	httpx.JSON(w, http.StatusOK, out)
}
