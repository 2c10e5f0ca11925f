package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rolegate/rolegate/internal/platform/httpx"
)

var validate = validator.New()

// Handler exposes the role and permission management API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.Get("/", h.listRoles)
		r.Post("/", h.createRole)
		r.Delete("/{slug}", h.deleteRole)
		r.Get("/{slug}/permissions", h.rolePermissions)
		r.Post("/{slug}/permissions", h.attachPermissions)
		r.Delete("/{slug}/permissions", h.detachAllPermissions)
		r.Delete("/{slug}/permissions/{permission}", h.detachPermission)
	})
	r.Route("/permissions", func(r chi.Router) {
		r.Get("/", h.listPermissions)
		r.Post("/", h.createPermission)
		r.Delete("/{slug}", h.deletePermission)
	})
	r.Route("/users/{id}", func(r chi.Router) {
		r.Get("/roles", h.userRoles)
		r.Post("/roles", h.attachRoles)
		r.Delete("/roles", h.detachAllRoles)
		r.Delete("/roles/{slug}", h.detachRole)
		r.Get("/permissions", h.userPermissions)
	})
}

type roleResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

type permissionResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Description string `json:"description" validate:"max=500"`
}

type createPermissionRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Slug        string `json:"slug" validate:"max=200"`
	Description string `json:"description" validate:"max=500"`
}

type attachPermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required,min=1,dive,required"`
}

type attachRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,required"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, "list roles", err)
		return
	}
	out := make([]roleResponse, len(roles))
	for i, role := range roles {
		out[i] = roleResponse(role)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		h.respondError(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, roleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRole(r.Context(), chi.URLParam(r, "slug")); err != nil {
		h.respondError(w, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.Role(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.respondError(w, "load role", err)
		return
	}
	perms, err := role.Permissions(r.Context(), nil)
	if err != nil {
		h.respondError(w, "role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionResponses(perms))
}

func (h *Handler) attachPermissions(w http.ResponseWriter, r *http.Request) {
	var req attachPermissionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.AttachPermissions(r.Context(), chi.URLParam(r, "slug"), req.Permissions); err != nil {
		h.respondError(w, "attach permissions", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) detachAllPermissions(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DetachAllPermissions(r.Context(), chi.URLParam(r, "slug")); err != nil {
		h.respondError(w, "detach all permissions", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) detachPermission(w http.ResponseWriter, r *http.Request) {
	err := h.service.DetachPermission(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "permission"))
	if err != nil {
		h.respondError(w, "detach permission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.respondError(w, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionResponses(perms))
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), req.Name, req.Slug, req.Description)
	if err != nil {
		h.respondError(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, permissionResponse(perm))
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePermission(r.Context(), chi.URLParam(r, "slug")); err != nil {
		h.respondError(w, "delete permission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	roles, err := h.service.UserRoles(r.Context(), userID)
	if err != nil {
		h.respondError(w, "user roles", err)
		return
	}
	out := make([]roleResponse, len(roles))
	for i, role := range roles {
		out[i] = roleResponse(role)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) attachRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req attachRolesRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.AttachRoles(r.Context(), userID, req.Roles); err != nil {
		h.respondError(w, "attach roles", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) detachAllRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.service.DetachAllRoles(r.Context(), userID); err != nil {
		h.respondError(w, "detach all roles", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) detachRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.service.DetachRole(r.Context(), userID, chi.URLParam(r, "slug")); err != nil {
		h.respondError(w, "detach role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	perms, err := h.service.UserPermissions(r.Context(), userID)
	if err != nil {
		h.respondError(w, "user permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionResponses(perms))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return false
	}
	if err := validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", "user id must be an integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateSlug):
		httpx.Problem(w, http.StatusConflict, "Duplicate Slug", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func permissionResponses(perms []Permission) []permissionResponse {
	out := make([]permissionResponse, len(perms))
	for i, perm := range perms {
		out[i] = permissionResponse(perm)
	}
	return out
}
