package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carmarket/backend/internal/models"
)

// MemoryStore keeps everything in maps guarded by a RWMutex. When built with
// a SnapshotFile it rewrites the file after every mutation.
type MemoryStore struct {
	mu       sync.RWMutex
	data     memoryData
	snapshot *SnapshotFile
	now      func() time.Time
}

type memoryData struct {
	NextUserID uint                     `json:"nextUserId"`
	NextCarID  uint                     `json:"nextCarId"`
	Users      map[uint]*memoryUser     `json:"users"`
	Cars       map[uint]*models.Car     `json:"cars"`
	Wishlist   map[uint][]wishlistEntry `json:"wishlist"`
}

// memoryUser exists so the snapshot keeps the hash that models.User hides.
type memoryUser struct {
	models.User
	Password string `json:"password"`
}

type wishlistEntry struct {
	CarID   uint      `json:"carId"`
	AddedAt time.Time `json:"addedAt"`
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: memoryData{
			Users:    make(map[uint]*memoryUser),
			Cars:     make(map[uint]*models.Car),
			Wishlist: make(map[uint][]wishlistEntry),
		},
		now: time.Now,
	}
}

// NewPersistentMemoryStore restores state from snapshot, if any.
func NewPersistentMemoryStore(snapshot *SnapshotFile) (*MemoryStore, error) {
	s := NewMemoryStore()
	s.snapshot = snapshot
	var data memoryData
	found, err := snapshot.Load(&data)
	if err != nil {
		return nil, err
	}
	if found {
		if data.Users != nil {
			s.data.Users = data.Users
		}
		if data.Cars != nil {
			s.data.Cars = data.Cars
		}
		if data.Wishlist != nil {
			s.data.Wishlist = data.Wishlist
		}
		s.data.NextUserID = data.NextUserID
		s.data.NextCarID = data.NextCarID
		logrus.WithFields(logrus.Fields{
			"path":  snapshot.Path(),
			"users": len(s.data.Users),
			"cars":  len(s.data.Cars),
		}).Info("memory store restored")
	}
	return s, nil
}

// persist must be called with mu held.
func (s *MemoryStore) persist() error {
	if s.snapshot == nil {
		return nil
	}
	return s.snapshot.Save(&s.data)
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(user.Email, 0) {
		return ErrDuplicateEmail
	}
	s.data.NextUserID++
	now := s.now()
	user.ID = s.data.NextUserID
	user.CreatedAt = now
	user.UpdatedAt = now

	rec := &memoryUser{User: *user, Password: user.PasswordHash}
	s.data.Users[user.ID] = rec
	return s.persist()
}

func (s *MemoryStore) emailTaken(email string, except uint) bool {
	for id, u := range s.data.Users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (s *MemoryStore) userLocked(id uint) (*models.User, error) {
	rec, ok := s.data.Users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := rec.User
	u.PasswordHash = rec.Password
	return &u, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userLocked(id)
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, u := range s.data.Users {
		if u.Email == email {
			return s.userLocked(id)
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListUsersWithCars(ctx context.Context) ([]models.UserWithCars, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint, 0, len(s.data.Users))
	for id := range s.data.Users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]models.UserWithCars, 0, len(ids))
	for _, id := range ids {
		u, _ := s.userLocked(id)
		out = append(out, models.UserWithCars{User: *u, Cars: s.carsBySellerLocked(id)})
	}
	return out, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data.Users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if s.emailTaken(user.Email, user.ID) {
		return ErrDuplicateEmail
	}
	user.CreatedAt = rec.CreatedAt
	user.UpdatedAt = s.now()
	s.data.Users[user.ID] = &memoryUser{User: *user, Password: user.PasswordHash}
	return s.persist()
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.userLocked(id)
	if err != nil {
		return nil, err
	}
	for carID, c := range s.data.Cars {
		if c.SellerID == id {
			s.deleteCarLocked(carID)
		}
	}
	delete(s.data.Wishlist, id)
	delete(s.data.Users, id)
	return u, s.persist()
}

func (s *MemoryStore) CreateCar(ctx context.Context, car *models.Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[car.SellerID]; !ok {
		return ErrNotFound
	}
	s.data.NextCarID++
	now := s.now()
	car.ID = s.data.NextCarID
	car.CreatedAt = now
	car.UpdatedAt = now
	s.data.Cars[car.ID] = cloneCar(car)
	return s.persist()
}

func (s *MemoryStore) GetCar(ctx context.Context, id uint) (*models.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data.Cars[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCar(c), nil
}

func (s *MemoryStore) matching(filter CarFilter) []models.Car {
	out := make([]models.Car, 0)
	for _, c := range s.data.Cars {
		if filter.Matches(c) {
			out = append(out, *cloneCar(c))
		}
	}
	return out
}

func (s *MemoryStore) ListCars(ctx context.Context, filter CarFilter) ([]models.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cars := s.matching(filter)
	sortCars(cars, filter.SortBy, filter.SortDesc)

	if filter.Offset >= len(cars) {
		return []models.Car{}, nil
	}
	cars = cars[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(cars) {
		cars = cars[:filter.Limit]
	}
	return cars, nil
}

func (s *MemoryStore) CountCars(ctx context.Context, filter CarFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matching(filter))), nil
}

func (s *MemoryStore) carsBySellerLocked(sellerID uint) []models.Car {
	out := make([]models.Car, 0)
	for _, c := range s.data.Cars {
		if c.SellerID == sellerID {
			out = append(out, *cloneCar(c))
		}
	}
	sortCars(out, SortCreatedAt, true)
	return out
}

func (s *MemoryStore) ListCarsBySeller(ctx context.Context, sellerID uint) ([]models.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carsBySellerLocked(sellerID), nil
}

func (s *MemoryStore) UpdateCar(ctx context.Context, car *models.Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data.Cars[car.ID]
	if !ok {
		return ErrNotFound
	}
	car.SellerID = existing.SellerID
	car.CreatedAt = existing.CreatedAt
	car.UpdatedAt = s.now()
	s.data.Cars[car.ID] = cloneCar(car)
	return s.persist()
}

func (s *MemoryStore) DeleteCar(ctx context.Context, id uint) (*models.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.data.Cars[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.deleteCarLocked(id)
	return c, s.persist()
}

func (s *MemoryStore) deleteCarLocked(id uint) {
	delete(s.data.Cars, id)
	for userID, entries := range s.data.Wishlist {
		s.data.Wishlist[userID] = withoutCar(entries, id)
	}
}

func withoutCar(entries []wishlistEntry, carID uint) []wishlistEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.CarID != carID {
			out = append(out, e)
		}
	}
	return out
}

func (s *MemoryStore) AddToWishlist(ctx context.Context, userID, carID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[userID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.data.Cars[carID]; !ok {
		return ErrNotFound
	}
	for _, e := range s.data.Wishlist[userID] {
		if e.CarID == carID {
			return nil
		}
	}
	s.data.Wishlist[userID] = append(s.data.Wishlist[userID], wishlistEntry{CarID: carID, AddedAt: s.now()})
	return s.persist()
}

func (s *MemoryStore) RemoveFromWishlist(ctx context.Context, userID, carID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.data.Wishlist[userID]
	if !ok {
		return nil
	}
	s.data.Wishlist[userID] = withoutCar(entries, carID)
	return s.persist()
}

func (s *MemoryStore) ListWishlist(ctx context.Context, userID uint) ([]models.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.data.Wishlist[userID]
	out := make([]models.Car, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if c, ok := s.data.Cars[entries[i].CarID]; ok {
			out = append(out, *cloneCar(c))
		}
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

func cloneCar(c *models.Car) *models.Car {
	cp := *c
	cp.ImageURLs = append(make([]string, 0, len(c.ImageURLs)), c.ImageURLs...)
	return &cp
}

func sortCars(cars []models.Car, by SortField, desc bool) {
	less := func(a, b *models.Car) int {
		switch by {
		case SortPrice:
			return compareFloat(a.Price, b.Price)
		case SortYear:
			return a.Year - b.Year
		case SortMileage:
			return compareMileage(a.Mileage, b.Mileage)
		case SortMake:
			return strings.Compare(a.Make, b.Make)
		case SortModel:
			return strings.Compare(a.Model, b.Model)
		case SortUpdatedAt:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(cars, func(i, j int) bool {
		c := less(&cars[i], &cars[j])
		if c == 0 {
			// newer ids first on ties
			return cars[i].ID > cars[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareMileage orders missing mileage after every known value.
func compareMileage(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return *a - *b
}
