package access

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-training/meridian/internal/observability"
	"github.com/meridian-training/meridian/internal/platform/httpx"
	"github.com/meridian-training/meridian/internal/roles"
)

// ServicePort is the reconciliation/evaluation surface used by the handler.
type ServicePort interface {
	ListGrantsDetailed(ctx context.Context, roleID *int64) ([]GrantDetail, error)
	UpdateRoleAccess(ctx context.Context, roleID int64, desired []ModuleAccessInput) error
	BulkUpdateRoleAccess(ctx context.Context, updates []RoleAccessInput) error
	HasAccess(ctx context.Context, roleIDs []int64, moduleID int64, sectionID *int64) (bool, error)
}

// ReporterPort is the aggregation surface used by the handler.
type ReporterPort interface {
	ModulesWithSectionsForRole(ctx context.Context, roleID int64) ([]ModuleSectionsView, error)
	RolesWithAccess(ctx context.Context) ([]RoleCoverageView, error)
}

// SeederPort runs the one-shot legacy bootstrap. It returns the number of
// grants created, or ErrAlreadySeeded when the guard trips.
type SeederPort interface {
	Seed(ctx context.Context) (int, error)
}

// UserRolesPort resolves a user's role ids.
type UserRolesPort interface {
	RoleIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Handler serves the /roleaccess endpoints.
type Handler struct {
	logger   *slog.Logger
	service  ServicePort
	reporter ReporterPort
	seeder   SeederPort
	users    UserRolesPort
	metrics  *observability.Metrics
	admin    func(http.Handler) http.Handler
}

// NewHandler builds a Handler instance. admin guards mutating routes; pass
// nil to leave them open (tests).
func NewHandler(logger *slog.Logger, service ServicePort, reporter ReporterPort, seeder SeederPort, users UserRolesPort, metrics *observability.Metrics, admin func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if admin == nil {
		admin = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{logger: logger, service: service, reporter: reporter, seeder: seeder, users: users, metrics: metrics, admin: admin}
}

// MountRoutes registers the role-access routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listAll)
	r.Get("/role/{roleID}", h.listForRole)
	r.Get("/role/{roleID}/modules-sections", h.modulesSections)
	r.Get("/roles-summary", h.rolesSummary)
	r.Get("/check-access", h.checkAccess)
	r.Group(func(r chi.Router) {
		r.Use(h.admin)
		r.Put("/role/{roleID}", h.updateRole)
		r.Put("/bulk-update", h.bulkUpdate)
		r.Post("/seed-data", h.seedData)
	})
}

type moduleAccessRequest struct {
	ModuleID   int64   `json:"moduleId"`
	SectionIDs []int64 `json:"sectionIds"`
}

type updateRoleAccessRequest struct {
	ModuleAccess []moduleAccessRequest `json:"moduleAccess"`
}

type bulkUpdateEntry struct {
	RoleID       int64                 `json:"roleId"`
	ModuleAccess []moduleAccessRequest `json:"moduleAccess"`
}

type grantResponse struct {
	ID                int64  `json:"id"`
	RoleID            int64  `json:"roleId"`
	RoleName          string `json:"roleName"`
	ModuleID          int64  `json:"moduleId"`
	ModuleName        string `json:"moduleName"`
	SectionID         *int64 `json:"sectionId"`
	SectionName       string `json:"sectionName,omitempty"`
	CanView           bool   `json:"canView"`
	CanEdit           bool   `json:"canEdit"`
	CanDelete         bool   `json:"canDelete"`
	IsActive          bool   `json:"isActive"`
	ExternalRoleID    string `json:"externalRoleId,omitempty"`
	ExternalModuleID  string `json:"externalModuleId,omitempty"`
	ExternalSectionID string `json:"externalSectionId,omitempty"`
}

func toGrantResponse(d GrantDetail) grantResponse {
	return grantResponse{
		ID:                d.ID,
		RoleID:            d.RoleID,
		RoleName:          d.RoleName,
		ModuleID:          d.ModuleID,
		ModuleName:        d.ModuleName,
		SectionID:         d.SectionID,
		SectionName:       d.SectionName,
		CanView:           d.CanView,
		CanEdit:           d.CanEdit,
		CanDelete:         d.CanDelete,
		IsActive:          d.IsActive,
		ExternalRoleID:    d.ExternalRoleID,
		ExternalModuleID:  d.ExternalModuleID,
		ExternalSectionID: d.ExternalSectionID,
	}
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.ListGrantsDetailed(r.Context(), nil)
	if err != nil {
		h.logger.Error("list grants", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]grantResponse, 0, len(details))
	for _, d := range details {
		out = append(out, toGrantResponse(d))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listForRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.roleIDParam(w, r)
	if !ok {
		return
	}
	details, err := h.service.ListGrantsDetailed(r.Context(), &roleID)
	if err != nil {
		h.logger.Error("list grants for role", slog.Int64("role_id", roleID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]grantResponse, 0, len(details))
	for _, d := range details {
		out = append(out, toGrantResponse(d))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) modulesSections(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.roleIDParam(w, r)
	if !ok {
		return
	}
	views, err := h.reporter.ModulesWithSectionsForRole(r.Context(), roleID)
	if err != nil {
		h.respondError(w, "modules-sections summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) rolesSummary(w http.ResponseWriter, r *http.Request) {
	views, err := h.reporter.RolesWithAccess(r.Context())
	if err != nil {
		h.respondError(w, "roles summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.roleIDParam(w, r)
	if !ok {
		return
	}
	var req updateRoleAccessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	desired := make([]ModuleAccessInput, 0, len(req.ModuleAccess))
	for _, m := range req.ModuleAccess {
		desired = append(desired, ModuleAccessInput{ModuleID: m.ModuleID, SectionIDs: m.SectionIDs})
	}
	if err := h.service.UpdateRoleAccess(r.Context(), roleID, desired); err != nil {
		h.metrics.RecordReconcile("single", "failure")
		h.respondError(w, "update role access", err)
		return
	}
	h.metrics.RecordReconcile("single", "success")
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req []bulkUpdateEntry
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	updates := make([]RoleAccessInput, 0, len(req))
	for _, entry := range req {
		input := RoleAccessInput{RoleID: entry.RoleID}
		for _, m := range entry.ModuleAccess {
			input.ModuleAccess = append(input.ModuleAccess, ModuleAccessInput{ModuleID: m.ModuleID, SectionIDs: m.SectionIDs})
		}
		updates = append(updates, input)
	}
	if err := h.service.BulkUpdateRoleAccess(r.Context(), updates); err != nil {
		h.metrics.RecordReconcile("bulk", "failure")
		h.respondError(w, "bulk update role access", err)
		return
	}
	h.metrics.RecordReconcile("bulk", "success")
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true, "roles": len(updates)})
}

func (h *Handler) checkAccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := strconv.ParseInt(q.Get("userId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "userId must be numeric")
		return
	}
	moduleID, err := strconv.ParseInt(q.Get("moduleId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "moduleId must be numeric")
		return
	}
	var sectionID *int64
	if raw := q.Get("sectionId"); raw != "" {
		sid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "sectionId must be numeric")
			return
		}
		sectionID = &sid
	}

	roleIDs, err := h.users.RoleIDs(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve user roles", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	has, err := h.service.HasAccess(r.Context(), roleIDs, moduleID, sectionID)
	if err != nil {
		h.logger.Error("evaluate access", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"hasAccess": has})
}

func (h *Handler) seedData(w http.ResponseWriter, r *http.Request) {
	created, err := h.seeder.Seed(r.Context())
	if err != nil {
		if errors.Is(err, ErrAlreadySeeded) {
			h.metrics.RecordSeed("already_seeded")
			httpx.Problem(w, http.StatusConflict, "Conflict", "legacy dataset already seeded")
			return
		}
		h.metrics.RecordSeed("failure")
		h.logger.Error("seed legacy dataset", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.metrics.RecordSeed("success")
	httpx.JSON(w, http.StatusOK, map[string]any{"seeded": true, "grantsCreated": created})
}

func (h *Handler) roleIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil || roleID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "role id must be a positive integer")
		return 0, false
	}
	return roleID, true
}

// respondError maps domain errors onto problem responses. Internals are
// logged, never returned to the caller.
func (h *Handler) respondError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, roles.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "role not found")
	case errors.Is(err, ErrRoleNotFound):
		httpx.Problem(w, http.StatusBadRequest, "Role Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(what, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
