package services

import (
	"context"
	"errors"
	"strings"

	"github.com/carmarket/backend/internal/auth"
	"github.com/carmarket/backend/internal/logging"
	"github.com/carmarket/backend/internal/media"
	"github.com/carmarket/backend/internal/models"
	"github.com/carmarket/backend/internal/storage"
)

type UserService struct {
	store  storage.Store
	media  media.Gateway
	tokens *auth.TokenService
}

func NewUserService(store storage.Store, gw media.Gateway, tokens *auth.TokenService) *UserService {
	return &UserService{
		store:  store,
		media:  gw,
		tokens: tokens,
	}
}

// List returns every user with their listings.
func (s *UserService) List(ctx context.Context) ([]models.UserWithCars, error) {
	users, err := s.store.ListUsersWithCars(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.UserWithCars{}
	}
	return users, nil
}

func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, invalid(errs)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if req.Phone != nil && strings.TrimSpace(*req.Phone) != "" {
		phone := *req.Phone
		user.Phone = &phone
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}

	logging.FromContext(ctx).WithField("op", "Register").WithField("user_id", user.ID).Info("user registered")
	return s.authResponse(user)
}

func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, invalid(errs)
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.authResponse(user)
}

func (s *UserService) authResponse(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, User: *user}, nil
}

func (s *UserService) get(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// Profile returns a user with their listings and wishlist.
func (s *UserService) Profile(ctx context.Context, id uint) (*models.UserProfile, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	cars, err := s.store.ListCarsBySeller(ctx, id)
	if err != nil {
		return nil, err
	}
	wishlist, err := s.store.ListWishlist(ctx, id)
	if err != nil {
		return nil, err
	}
	if cars == nil {
		cars = []models.Car{}
	}
	if wishlist == nil {
		wishlist = []models.Car{}
	}
	return &models.UserProfile{User: *user, Cars: cars, Wishlist: wishlist}, nil
}

// Update changes the caller's own profile.
func (s *UserService) Update(ctx context.Context, callerID, id uint, req *models.UpdateUserRequest) (*models.User, error) {
	if callerID != id {
		return nil, ErrForbidden
	}
	if errs := req.Validate(); len(errs) > 0 {
		return nil, invalid(errs)
	}
	if !req.HasChanges() {
		return nil, badRequest("No updatable fields provided")
	}

	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name.Set {
		user.Name = req.Name.Raw
	}
	if req.Email.Set {
		user.Email = req.Email.Raw
	}
	if req.Phone.Set {
		user.Phone = req.Phone.StringPtr()
	}
	if req.Password.Set {
		hash, err := auth.HashPassword(req.Password.Raw)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicateEmail):
			return nil, ErrEmailInUse
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Delete removes the caller's account and listings, then purges the listing
// images best effort.
func (s *UserService) Delete(ctx context.Context, callerID, id uint) (*models.User, error) {
	log := logging.FromContext(ctx).WithField("op", "DeleteUser").WithField("user_id", id)

	if callerID != id {
		return nil, ErrForbidden
	}
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}

	cars, err := s.store.ListCarsBySeller(ctx, id)
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, c := range cars {
		urls = append(urls, c.ImageURLs...)
	}

	deleted, err := s.store.DeleteUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if failed := media.DeleteAll(ctx, s.media, urls); len(failed) > 0 {
		log.WithField("failed", len(failed)).Warn("some listing images were not deleted")
	}
	log.WithField("listings", len(cars)).Info("account deleted")
	return deleted, nil
}
