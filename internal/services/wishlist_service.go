package services

import (
	"context"
	"errors"

	"github.com/carmarket/backend/internal/models"
	"github.com/carmarket/backend/internal/storage"
)

type WishlistService struct {
	store storage.Store
}

func NewWishlistService(store storage.Store) *WishlistService {
	return &WishlistService{store: store}
}

func (s *WishlistService) List(ctx context.Context, userID uint) ([]models.Car, error) {
	cars, err := s.store.ListWishlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cars == nil {
		cars = []models.Car{}
	}
	return cars, nil
}

func parseCarID(f models.Field) (uint, error) {
	if f.Blank() {
		return 0, badRequest("carId is required")
	}
	id, ok := f.Uint()
	if !ok {
		return 0, badRequest("Invalid carId")
	}
	return id, nil
}

// target resolves the car a wishlist request refers to.
func (s *WishlistService) target(ctx context.Context, carID models.Field) (uint, error) {
	id, err := parseCarID(carID)
	if err != nil {
		return 0, err
	}
	if _, err := s.store.GetCar(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrCarNotFound
		}
		return 0, err
	}
	return id, nil
}

// Add is idempotent and returns the refreshed wishlist.
func (s *WishlistService) Add(ctx context.Context, userID uint, carID models.Field) ([]models.Car, error) {
	id, err := s.target(ctx, carID)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddToWishlist(ctx, userID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.List(ctx, userID)
}

// Remove succeeds even when the car was not on the wishlist.
func (s *WishlistService) Remove(ctx context.Context, userID uint, carID models.Field) ([]models.Car, error) {
	id, err := s.target(ctx, carID)
	if err != nil {
		return nil, err
	}
	if err := s.store.RemoveFromWishlist(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.List(ctx, userID)
}
