package handlers

import (
	"net/http"

	"github.com/carmarket/backend/internal/middleware"
	"github.com/carmarket/backend/internal/models"
	"github.com/carmarket/backend/internal/services"
)

type UserHandler struct {
	users *services.UserService
	Options
}

func NewUserHandler(users *services.UserService, opts Options) *UserHandler {
	return &UserHandler{
		users:   users,
		Options: opts,
	}
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "ListUsers", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeRequestError(w, r, "Register", err)
		return
	}

	res, err := h.users.Register(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, r, "Register", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	profile, err := h.users.Profile(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "GetUser", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	callerID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeRequestError(w, r, "UpdateUser", err)
		return
	}

	user, err := h.users.Update(r.Context(), callerID, id, &req)
	if err != nil {
		h.writeServiceError(w, r, "UpdateUser", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	callerID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.users.Delete(r.Context(), callerID, id)
	if err != nil {
		h.writeServiceError(w, r, "DeleteUser", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
