package services

import (
	"github.com/carmarket/backend/internal/models"
)

// ErrorKind classifies a failure the client can act on. Anything that is not
// an *Error is an internal failure.
type ErrorKind int

const (
	KindBadRequest ErrorKind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
)

type Error struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "Unauthorized"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "Forbidden"}
	ErrCarNotFound        = &Error{Kind: KindNotFound, Message: "Car not found"}
	ErrUserNotFound       = &Error{Kind: KindNotFound, Message: "User not found"}
	ErrSellerNotFound     = &Error{Kind: KindNotFound, Message: "Seller not found"}
	ErrEmailInUse         = &Error{Kind: KindConflict, Message: "Email already in use"}
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Message: "Invalid credentials"}
	ErrUploadFailed       = &Error{Kind: KindUpstream, Message: "Failed to upload images"}
)

func badRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

func invalid(errs models.ValidationErrors) *Error {
	return &Error{Kind: KindBadRequest, Message: errs.First(), Fields: errs.Map()}
}
