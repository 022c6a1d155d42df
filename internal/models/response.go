package models

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors,omitempty"`
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Error: message}
}

// ImageUploadResponse is returned by the standalone upload endpoint.
type ImageUploadResponse struct {
	URLs []string `json:"urls"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// WishlistRequest identifies a listing to add or remove.
type WishlistRequest struct {
	CarID Field `json:"carId"`
}
