package user

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/user-management/internal/transport"
	"github.com/frahmantamala/user-management/pkg/logger"
)

type ServiceAPI interface {
	ListUsers(ctx context.Context) ([]*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, dto CreateUserDTO) (*User, error)
	UpdateUserProfile(ctx context.Context, id int64, dto UpdateUserDTO) (*User, error)
	DeleteUser(ctx context.Context, id int64) error
	ReplaceFavorites(ctx context.Context, id int64, items []FavoriteInput) (*User, error)
	UpdatePermissions(ctx context.Context, id int64, dto PermissionsDTO) (*User, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI, lg *slog.Logger) *Handler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// ListUsers handles GET /users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.ListUsers(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, UsersResponse(users))
}

// GetUser handles GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.PathID(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	u, err := h.Service.GetUser(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// CreateUser handles POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var dto CreateUserDTO
	if appErr := h.DecodeJSON(r, &dto, false); appErr != nil {
		h.LoggerFor(r).Warn("CreateUser: invalid request body", "error", appErr.Cause)
		h.WriteAppError(w, appErr)
		return
	}
	if appErr := h.Validate(dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	u, err := h.Service.CreateUser(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u)
}

// UpdateUser handles PUT /users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.PathID(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	var dto UpdateUserDTO
	if appErr := h.DecodeJSON(r, &dto, false); appErr != nil {
		h.LoggerFor(r).Warn("UpdateUser: invalid request body", "user_id", id, "error", appErr.Cause)
		h.WriteAppError(w, appErr)
		return
	}
	if appErr := h.Validate(dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	u, err := h.Service.UpdateUserProfile(r.Context(), id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// DeleteUser handles DELETE /users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.PathID(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	if err := h.Service.DeleteUser(r.Context(), id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, DeleteResponse{Message: "User deleted successfully"})
}

// ReplaceFavorites handles PUT /users/{id}/favorites. An empty body clears
// the favorites.
func (h *Handler) ReplaceFavorites(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.PathID(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	var dto FavoritesDTO
	if appErr := h.DecodeJSON(r, &dto, true); appErr != nil {
		h.LoggerFor(r).Warn("ReplaceFavorites: invalid request body", "user_id", id, "error", appErr.Cause)
		h.WriteAppError(w, appErr)
		return
	}

	u, err := h.Service.ReplaceFavorites(r.Context(), id, dto.Items())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// UpdatePermissions handles PUT /users/{id}/permissions
func (h *Handler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.PathID(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	var dto PermissionsDTO
	if appErr := h.DecodeJSON(r, &dto, false); appErr != nil {
		h.LoggerFor(r).Warn("UpdatePermissions: invalid request body", "user_id", id, "error", appErr.Cause)
		h.WriteAppError(w, appErr)
		return
	}

	u, err := h.Service.UpdatePermissions(r.Context(), id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}
