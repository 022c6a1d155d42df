package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/carmarket/backend/internal/logging"
	"github.com/carmarket/backend/internal/models"
	"github.com/carmarket/backend/internal/services"
)

// Options are shared by every handler.
type Options struct {
	// Production hides internal error messages from clients.
	Production bool
	// MaxImageBytes caps each uploaded image.
	MaxImageBytes int64
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.NewErrorResponse(message))
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindBadRequest:
		return http.StatusBadRequest
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err. Errors the service did not classify are
// logged and reported as 500.
func (o Options) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		writeJSON(w, statusForKind(svcErr.Kind), models.ErrorResponse{Error: svcErr.Message, Errors: svcErr.Fields})
		return
	}

	logging.FromContext(r.Context()).WithField("op", op).WithError(err).Error("internal error")
	message := err.Error()
	if o.Production {
		message = "Internal server error"
	}
	writeError(w, http.StatusInternalServerError, message)
}

var methodOrder = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

// Methods dispatches a resource by HTTP method. OPTIONS is answered with the
// resource's Allow header; any other unlisted method gets 405.
type Methods map[string]http.HandlerFunc

func (m Methods) allow() string {
	allowed := make([]string, 0, len(m))
	for _, method := range methodOrder {
		if _, ok := m[method]; ok {
			allowed = append(allowed, method)
		}
	}
	return strings.Join(allowed, ", ")
}

func (m Methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h(w, r)
		return
	}
	w.Header().Set("Allow", m.allow())
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeError(w, http.StatusMethodNotAllowed, "Method "+r.Method+" Not Allowed")
}

// pathID reads a positive integer id from the route.
func pathID(r *http.Request, name string) (uint, bool) {
	return models.FormField(chi.URLParam(r, name)).Uint()
}
