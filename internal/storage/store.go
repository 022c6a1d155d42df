// Package storage is the persistence gateway for users, listings and
// wishlists. GormStore (Postgres or SQLite), MongoStore and MemoryStore all
// implement Store.
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/carmarket/backend/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already in use")
)

type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsersWithCars(ctx context.Context) ([]models.UserWithCars, error)
	UpdateUser(ctx context.Context, user *models.User) error
	// DeleteUser removes the user, their listings and every wishlist entry
	// touching either.
	DeleteUser(ctx context.Context, id uint) (*models.User, error)

	CreateCar(ctx context.Context, car *models.Car) error
	GetCar(ctx context.Context, id uint) (*models.Car, error)
	ListCars(ctx context.Context, filter CarFilter) ([]models.Car, error)
	CountCars(ctx context.Context, filter CarFilter) (int64, error)
	ListCarsBySeller(ctx context.Context, sellerID uint) ([]models.Car, error)
	UpdateCar(ctx context.Context, car *models.Car) error
	DeleteCar(ctx context.Context, id uint) (*models.Car, error)

	AddToWishlist(ctx context.Context, userID, carID uint) error
	RemoveFromWishlist(ctx context.Context, userID, carID uint) error
	ListWishlist(ctx context.Context, userID uint) ([]models.Car, error)

	Ping(ctx context.Context) error
	Close() error
}

// SortField is a listing attribute results can be ordered by.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
	SortPrice     SortField = "price"
	SortYear      SortField = "year"
	SortMileage   SortField = "mileage"
	SortMake      SortField = "make"
	SortModel     SortField = "model"
)

var sortColumns = map[SortField]string{
	SortCreatedAt: "created_at",
	SortUpdatedAt: "updated_at",
	SortPrice:     "price",
	SortYear:      "year",
	SortMileage:   "mileage",
	SortMake:      "make",
	SortModel:     "model",
}

// ParseSortField maps a query value to a SortField. Empty means createdAt.
func ParseSortField(s string) (SortField, bool) {
	if s == "" {
		return SortCreatedAt, true
	}
	f := SortField(s)
	_, ok := sortColumns[f]
	return f, ok
}

// CarFilter selects a page of listings. Text matches are case-insensitive;
// Make and Model match exactly, Search and Location match substrings.
type CarFilter struct {
	Search    string
	Make      string
	Model     string
	Location  string
	Condition string
	MinPrice  *float64
	MaxPrice  *float64
	MinYear   *float64
	MaxYear   *float64

	ActiveOnly bool

	SortBy   SortField
	SortDesc bool
	Offset   int
	Limit    int
}

func (f CarFilter) sortColumn() string {
	if col, ok := sortColumns[f.SortBy]; ok {
		return col
	}
	return sortColumns[SortCreatedAt]
}

// Matches applies the filter to a single listing. MemoryStore uses it, and
// it documents the semantics the SQL and Mongo queries reproduce.
func (f CarFilter) Matches(c *models.Car) bool {
	if f.ActiveOnly && !c.IsActive {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !containsFold(c.Make, q) && !containsFold(c.Model, q) && !containsFold(c.Location, q) {
			return false
		}
	}
	if f.Make != "" && !strings.EqualFold(c.Make, f.Make) {
		return false
	}
	if f.Model != "" && !strings.EqualFold(c.Model, f.Model) {
		return false
	}
	if f.Location != "" && !containsFold(c.Location, strings.ToLower(f.Location)) {
		return false
	}
	if f.Condition != "" && c.Condition != f.Condition {
		return false
	}
	if f.MinPrice != nil && c.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && c.Price > *f.MaxPrice {
		return false
	}
	if f.MinYear != nil && float64(c.Year) < *f.MinYear {
		return false
	}
	if f.MaxYear != nil && float64(c.Year) > *f.MaxYear {
		return false
	}
	return true
}

func containsFold(s, lowerSubstr string) bool {
	return strings.Contains(strings.ToLower(s), lowerSubstr)
}
