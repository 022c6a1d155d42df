package handlers

import (
	"net/http"

	"github.com/carmarket/backend/internal/models"
	"github.com/carmarket/backend/internal/services"
)

type AuthHandler struct {
	users *services.UserService
	Options
}

func NewAuthHandler(users *services.UserService, opts Options) *AuthHandler {
	return &AuthHandler{
		users:   users,
		Options: opts,
	}
}

// Login exchanges an email and password for a token. Unknown emails and
// wrong passwords get the same answer.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeRequestError(w, r, "Login", err)
		return
	}

	res, err := h.users.Login(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, r, "Login", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
