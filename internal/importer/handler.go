package importer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-training/meridian/internal/access"
	"github.com/meridian-training/meridian/internal/observability"
	"github.com/meridian-training/meridian/internal/platform/httpx"
)

const maxUploadBytes = 4 << 20

// ServicePort is the import surface used by the handler.
type ServicePort interface {
	ImportRoles(ctx context.Context, doc Document) (Result, error)
}

// Handler serves the /roleimport endpoints.
type Handler struct {
	logger  *slog.Logger
	service ServicePort
	metrics *observability.Metrics
	admin   func(http.Handler) http.Handler
}

// NewHandler builds a Handler instance. admin guards the mutating routes;
// pass nil to leave them open (tests).
func NewHandler(logger *slog.Logger, service ServicePort, metrics *observability.Metrics, admin func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if admin == nil {
		admin = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{logger: logger, service: service, metrics: metrics, admin: admin}
}

// MountRoutes registers the role-import routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/template", h.template)
	r.Group(func(r chi.Router) {
		r.Use(h.admin)
		r.Post("/import-from-json", h.importFromJSON)
		r.Post("/import-from-file", h.importFromFile)
	})
}

func (h *Handler) importFromJSON(w http.ResponseWriter, r *http.Request) {
	var doc Document
	if err := httpx.DecodeJSON(r, &doc); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON document")
		return
	}
	h.runImport(w, r, doc)
}

func (h *Handler) importFromFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "file field required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".json") {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "only .json files are accepted")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unreadable upload")
		return
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON document")
		return
	}
	h.runImport(w, r, doc)
}

func (h *Handler) runImport(w http.ResponseWriter, r *http.Request, doc Document) {
	result, err := h.service.ImportRoles(r.Context(), doc)
	if err != nil {
		if errors.Is(err, access.ErrValidation) {
			h.metrics.RecordImport("rejected")
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.metrics.RecordImport("failure")
		h.logger.Error("role import", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.metrics.RecordImport("success")
	httpx.JSON(w, http.StatusOK, result)
}

// template returns a worked example of the import document shape. It reads
// no state.
func (h *Handler) template(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, Document{
		Roles: []RoleImport{
			{
				RoleName:  "Training Supervisor",
				ERPRoleID: "20",
				ModuleAccess: []ModuleImport{
					{
						// Whole-module wildcard: no sections listed.
						ModuleID: 2,
						CanEdit:  true,
					},
					{
						ModuleID: 1,
						Sections: []SectionImport{
							{
								SectionID:    301,
								SectionName:  "Intake Checklist",
								Description:  "Pre-shift intake walkthrough",
								ERPSectionID: "301",
								Order:        1,
								CanView:      true,
								CanEdit:      true,
							},
							{
								SectionID:   302,
								SectionName: "Dispatch Basics",
								Order:       2,
								CanView:     true,
							},
						},
					},
				},
			},
		},
	})
}
