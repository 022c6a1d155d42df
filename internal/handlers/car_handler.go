package handlers

import (
	"net/http"

	"github.com/carmarket/backend/internal/middleware"
	"github.com/carmarket/backend/internal/models"
	"github.com/carmarket/backend/internal/services"
)

type CarHandler struct {
	cars *services.CarService
	Options
}

func NewCarHandler(cars *services.CarService, opts Options) *CarHandler {
	return &CarHandler{
		cars:    cars,
		Options: opts,
	}
}

func (h *CarHandler) ListCars(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.cars.List(r.Context(), services.ListCarsParams{
		Search:    q.Get("search"),
		Make:      q.Get("make"),
		Model:     q.Get("model"),
		Location:  q.Get("location"),
		Condition: q.Get("condition"),
		MinPrice:  q.Get("minPrice"),
		MaxPrice:  q.Get("maxPrice"),
		MinYear:   q.Get("minYear"),
		MaxYear:   q.Get("maxYear"),
		Page:      q.Get("page"),
		PerPage:   q.Get("perPage"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	})
	if err != nil {
		h.writeServiceError(w, r, "ListCars", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateCar reads the form before checking the caller so malformed uploads
// are reported as such.
func (h *CarHandler) CreateCar(w http.ResponseWriter, r *http.Request) {
	in, files, err := h.readCarRequest(w, r)
	if err != nil {
		h.writeRequestError(w, r, "CreateCar", err)
		return
	}

	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	car, err := h.cars.Create(r.Context(), userID, in, files)
	if err != nil {
		h.writeServiceError(w, r, "CreateCar", err)
		return
	}
	writeJSON(w, http.StatusCreated, car)
}

func (h *CarHandler) GetCar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid car id")
		return
	}

	car, err := h.cars.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "GetCar", err)
		return
	}
	writeJSON(w, http.StatusOK, car)
}

func (h *CarHandler) UpdateCar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid car id")
		return
	}

	in, files, err := h.readCarRequest(w, r)
	if err != nil {
		h.writeRequestError(w, r, "UpdateCar", err)
		return
	}

	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	car, err := h.cars.Update(r.Context(), userID, id, in, files)
	if err != nil {
		h.writeServiceError(w, r, "UpdateCar", err)
		return
	}
	writeJSON(w, http.StatusOK, car)
}

func (h *CarHandler) DeleteCar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid car id")
		return
	}

	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	car, err := h.cars.Delete(r.Context(), userID, id)
	if err != nil {
		h.writeServiceError(w, r, "DeleteCar", err)
		return
	}
	writeJSON(w, http.StatusOK, car)
}

// UploadImages stores images for a listing that has not been created yet.
func (h *CarHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		writeError(w, http.StatusBadRequest, "At least one image file required")
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		h.writeRequestError(w, r, "UploadImages", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, err := h.readImages(r)
	if err != nil {
		h.writeRequestError(w, r, "UploadImages", err)
		return
	}

	urls, err := h.cars.UploadImages(r.Context(), files)
	if err != nil {
		h.writeServiceError(w, r, "UploadImages", err)
		return
	}
	writeJSON(w, http.StatusOK, models.ImageUploadResponse{URLs: urls})
}
