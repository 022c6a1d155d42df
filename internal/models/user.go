package models

import (
	"strings"
	"time"

	"github.com/carmarket/backend/internal/validation"
)

type User struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        *string   `json:"phone"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserWithCars is a user together with the listings they sell.
type UserWithCars struct {
	User
	Cars []Car `json:"cars"`
}

// UserProfile adds the user's wishlist.
type UserProfile struct {
	User
	Cars     []Car `json:"cars"`
	Wishlist []Car `json:"wishlist"`
}

type RegisterRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
	Password string  `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateUserRequest struct {
	Name     Field `json:"name"`
	Email    Field `json:"email"`
	Phone    Field `json:"phone"`
	Password Field `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// FieldError is one failed check on a request field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors keeps failures in check order so the first one can be
// reported as the headline error.
type ValidationErrors []FieldError

func (v *ValidationErrors) add(field, message string) {
	for _, e := range *v {
		if e.Field == field {
			return
		}
	}
	*v = append(*v, FieldError{Field: field, Message: message})
}

func (v ValidationErrors) First() string {
	if len(v) == 0 {
		return ""
	}
	return v[0].Message
}

func (v ValidationErrors) Map() map[string]string {
	out := make(map[string]string, len(v))
	for _, e := range v {
		out[e.Field] = e.Message
	}
	return out
}

func (r *RegisterRequest) Validate() ValidationErrors {
	var errs ValidationErrors

	if !validation.IsNonEmptyString(r.Name) {
		errs.add("name", "Name is required")
	}
	if !validation.IsNonEmptyString(r.Email) {
		errs.add("email", "Email is required")
	} else if !validation.IsValidEmail(r.Email) {
		errs.add("email", "Invalid email")
	}
	if r.Phone != nil && strings.TrimSpace(*r.Phone) != "" && !validation.IsValidPhone(*r.Phone) {
		errs.add("phone", "Invalid phone")
	}
	if r.Password == "" {
		errs.add("password", "Password is required")
	} else if len(r.Password) < validation.MinPasswordLength {
		errs.add("password", "Password must be at least 8 characters")
	}

	return errs
}

func (r *LoginRequest) Validate() ValidationErrors {
	var errs ValidationErrors
	if r.Email == "" || r.Password == "" {
		errs.add("credentials", "Email and password required")
	}
	return errs
}

func (r *UpdateUserRequest) HasChanges() bool {
	return r.Name.Set || r.Email.Set || r.Phone.Set || r.Password.Set
}

// Validate checks only the fields that were supplied. A null phone clears it.
func (r *UpdateUserRequest) Validate() ValidationErrors {
	var errs ValidationErrors

	if r.Password.Set && (!r.Password.Quoted || len(r.Password.Raw) < validation.MinPasswordLength) {
		errs.add("password", "Password must be a string with at least 8 characters")
	}
	if r.Email.Set && (!r.Email.Quoted || !validation.IsValidEmail(r.Email.Raw)) {
		errs.add("email", "Invalid email")
	}
	if r.Phone.Present() && !validation.IsValidPhone(r.Phone.Raw) {
		errs.add("phone", "Invalid phone")
	}
	if r.Name.Set && (!r.Name.Quoted || !validation.IsNonEmptyString(r.Name.Raw)) {
		errs.add("name", "Invalid name")
	}

	return errs
}
