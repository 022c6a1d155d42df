package handlers

import (
	"net/http"

	"github.com/carmarket/backend/internal/middleware"
	"github.com/carmarket/backend/internal/models"
	"github.com/carmarket/backend/internal/services"
)

// WishlistHandler serves the caller's wishlist. Routes sit behind RequireAuth.
type WishlistHandler struct {
	wishlist *services.WishlistService
	Options
}

func NewWishlistHandler(wishlist *services.WishlistService, opts Options) *WishlistHandler {
	return &WishlistHandler{
		wishlist: wishlist,
		Options:  opts,
	}
}

func (h *WishlistHandler) ListWishlist(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r.Context())

	cars, err := h.wishlist.List(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "ListWishlist", err)
		return
	}
	writeJSON(w, http.StatusOK, cars)
}

func (h *WishlistHandler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r.Context())

	var req models.WishlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeRequestError(w, r, "AddToWishlist", err)
		return
	}

	cars, err := h.wishlist.Add(r.Context(), userID, req.CarID)
	if err != nil {
		h.writeServiceError(w, r, "AddToWishlist", err)
		return
	}
	writeJSON(w, http.StatusOK, cars)
}

// RemoveFromWishlist takes carId from the JSON body or the query string.
func (h *WishlistHandler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r.Context())

	var req models.WishlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeRequestError(w, r, "RemoveFromWishlist", err)
		return
	}
	carID := req.CarID
	if !carID.Present() {
		if q := r.URL.Query(); q.Has("carId") {
			carID = models.FormField(q.Get("carId"))
		}
	}

	cars, err := h.wishlist.Remove(r.Context(), userID, carID)
	if err != nil {
		h.writeServiceError(w, r, "RemoveFromWishlist", err)
		return
	}
	writeJSON(w, http.StatusOK, cars)
}
