package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/carmarket/backend/internal/models"
)

type userRecord struct {
	ID        uint    `gorm:"primaryKey"`
	Name      string  `gorm:"not null"`
	Email     string  `gorm:"uniqueIndex;not null"`
	Phone     *string `gorm:"size:32"`
	Password  string  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Cars []carRecord `gorm:"foreignKey:SellerID;constraint:OnDelete:CASCADE"`
}

func (userRecord) TableName() string { return "users" }

type carRecord struct {
	ID           uint    `gorm:"primaryKey"`
	Make         string  `gorm:"index;not null"`
	Model        string  `gorm:"not null"`
	Year         int     `gorm:"index;not null"`
	Price        float64 `gorm:"index;not null"`
	Location     string  `gorm:"not null"`
	Condition    string  `gorm:"size:8;not null"`
	Description  *string
	Mileage      *int
	Color        *string
	Engine       *string
	Transmission *string
	FuelType     *string
	ImageURL     *string
	ImageURLs    datatypes.JSONSlice[string]
	IsActive     bool      `gorm:"index;not null"`
	SellerID     uint      `gorm:"index;not null"`
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

func (carRecord) TableName() string { return "cars" }

type wishlistRecord struct {
	UserID    uint `gorm:"primaryKey;autoIncrement:false"`
	CarID     uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

func (wishlistRecord) TableName() string { return "wishlist_entries" }

// GormStore implements Store on a relational database through GORM.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to Postgres and runs migrations.
func OpenPostgres(dsn string) (*GormStore, error) {
	return openGorm(postgres.Open(dsn))
}

// OpenSQLite opens (or creates) a SQLite database and runs migrations.
func OpenSQLite(path string) (*GormStore, error) {
	return openGorm(sqlite.Open(path))
}

func openGorm(dialector gorm.Dialector) (*GormStore, error) {
	db, err := gorm.Open(dialector, GormConfig())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := NewGormStore(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// GormConfig translates driver errors so unique violations surface as
// gorm.ErrDuplicatedKey, and routes GORM's logger through logrus. Logged SQL
// keeps its placeholders; bound values include password hashes.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(
			logrus.StandardLogger(),
			gormlogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
				ParameterizedQueries:      true,
				Colorful:                  false,
			},
		),
	}
}

// NewGormStore wraps an already opened handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&userRecord{}, &carRecord{}, &wishlistRecord{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	rec := userFromModel(user)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		return translateErr(err)
	}
	*user = userToModel(&rec)
	return nil
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, translateErr(err)
	}
	u := userToModel(&rec)
	return &u, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&rec).Error; err != nil {
		return nil, translateErr(err)
	}
	u := userToModel(&rec)
	return &u, nil
}

func (s *GormStore) ListUsersWithCars(ctx context.Context) ([]models.UserWithCars, error) {
	var recs []userRecord
	err := s.db.WithContext(ctx).
		Preload("Cars", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC, id DESC") }).
		Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.UserWithCars, 0, len(recs))
	for i := range recs {
		out = append(out, models.UserWithCars{
			User: userToModel(&recs[i]),
			Cars: carsToModels(recs[i].Cars),
		})
	}
	return out, nil
}

func (s *GormStore) UpdateUser(ctx context.Context, user *models.User) error {
	res := s.db.WithContext(ctx).Model(&userRecord{ID: user.ID}).Updates(map[string]interface{}{
		"name":       user.Name,
		"email":      user.Email,
		"phone":      user.Phone,
		"password":   user.PasswordHash,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return translateErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	fresh, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	*user = *fresh
	return nil
}

func (s *GormStore) DeleteUser(ctx context.Context, id uint) (*models.User, error) {
	var deleted models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec userRecord
		if err := tx.First(&rec, id).Error; err != nil {
			return translateErr(err)
		}
		sellerCars := tx.Model(&carRecord{}).Select("id").Where("seller_id = ?", id)
		if err := tx.Where("user_id = ? OR car_id IN (?)", id, sellerCars).Delete(&wishlistRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("seller_id = ?", id).Delete(&carRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&userRecord{}, id).Error; err != nil {
			return err
		}
		deleted = userToModel(&rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

func (s *GormStore) CreateCar(ctx context.Context, car *models.Car) error {
	rec := carFromModel(car)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return translateErr(err)
	}
	*car = carToModel(&rec)
	return nil
}

func (s *GormStore) GetCar(ctx context.Context, id uint) (*models.Car, error) {
	var rec carRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, translateErr(err)
	}
	c := carToModel(&rec)
	return &c, nil
}

func (s *GormStore) filtered(ctx context.Context, f CarFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&carRecord{})
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where(
			`(LOWER(make) LIKE ? ESCAPE '\' OR LOWER(model) LIKE ? ESCAPE '\' OR LOWER(location) LIKE ? ESCAPE '\')`,
			p, p, p,
		)
	}
	if f.Make != "" {
		q = q.Where("LOWER(make) = ?", strings.ToLower(f.Make))
	}
	if f.Model != "" {
		q = q.Where("LOWER(model) = ?", strings.ToLower(f.Model))
	}
	if f.Location != "" {
		q = q.Where(`LOWER(location) LIKE ? ESCAPE '\'`, likePattern(f.Location))
	}
	if f.Condition != "" {
		q = q.Where(clause.Eq{Column: clause.Column{Name: "condition"}, Value: f.Condition})
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if f.MinYear != nil {
		q = q.Where("year >= ?", *f.MinYear)
	}
	if f.MaxYear != nil {
		q = q.Where("year <= ?", *f.MaxYear)
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func (s *GormStore) ListCars(ctx context.Context, f CarFilter) ([]models.Car, error) {
	q := s.filtered(ctx, f).
		Order(clause.OrderByColumn{Column: clause.Column{Name: f.sortColumn()}, Desc: f.SortDesc}).
		Order("id DESC").
		Offset(f.Offset)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var recs []carRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return carsToModels(recs), nil
}

func (s *GormStore) CountCars(ctx context.Context, f CarFilter) (int64, error) {
	var n int64
	if err := s.filtered(ctx, f).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (s *GormStore) ListCarsBySeller(ctx context.Context, sellerID uint) ([]models.Car, error) {
	var recs []carRecord
	err := s.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC, id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return carsToModels(recs), nil
}

func (s *GormStore) UpdateCar(ctx context.Context, car *models.Car) error {
	rec := carFromModel(car)
	res := s.db.WithContext(ctx).
		Model(&carRecord{ID: car.ID}).
		Select("*").
		Omit("id", "seller_id", "created_at").
		Updates(&rec)
	if res.Error != nil {
		return translateErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	fresh, err := s.GetCar(ctx, car.ID)
	if err != nil {
		return err
	}
	*car = *fresh
	return nil
}

func (s *GormStore) DeleteCar(ctx context.Context, id uint) (*models.Car, error) {
	var deleted models.Car
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec carRecord
		if err := tx.First(&rec, id).Error; err != nil {
			return translateErr(err)
		}
		if err := tx.Where("car_id = ?", id).Delete(&wishlistRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&carRecord{}, id).Error; err != nil {
			return err
		}
		deleted = carToModel(&rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

func (s *GormStore) AddToWishlist(ctx context.Context, userID, carID uint) error {
	entry := wishlistRecord{UserID: userID, CarID: carID}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry).Error
}

func (s *GormStore) RemoveFromWishlist(ctx context.Context, userID, carID uint) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND car_id = ?", userID, carID).
		Delete(&wishlistRecord{}).Error
}

func (s *GormStore) ListWishlist(ctx context.Context, userID uint) ([]models.Car, error) {
	var recs []carRecord
	err := s.db.WithContext(ctx).
		Joins("JOIN wishlist_entries ON wishlist_entries.car_id = cars.id").
		Where("wishlist_entries.user_id = ?", userID).
		Order("wishlist_entries.created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return carsToModels(recs), nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translateErr(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateEmail
	}
	return err
}

func userFromModel(u *models.User) userRecord {
	return userRecord{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Password:  u.PasswordHash,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func userToModel(r *userRecord) models.User {
	return models.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		PasswordHash: r.Password,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func carFromModel(c *models.Car) carRecord {
	return carRecord{
		ID:           c.ID,
		Make:         c.Make,
		Model:        c.Model,
		Year:         c.Year,
		Price:        c.Price,
		Location:     c.Location,
		Condition:    c.Condition,
		Description:  c.Description,
		Mileage:      c.Mileage,
		Color:        c.Color,
		Engine:       c.Engine,
		Transmission: c.Transmission,
		FuelType:     c.FuelType,
		ImageURL:     c.ImageURL,
		ImageURLs:    datatypes.JSONSlice[string](append([]string{}, c.ImageURLs...)),
		IsActive:     c.IsActive,
		SellerID:     c.SellerID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func carToModel(r *carRecord) models.Car {
	c := models.Car{
		ID:           r.ID,
		Make:         r.Make,
		Model:        r.Model,
		Year:         r.Year,
		Price:        r.Price,
		Location:     r.Location,
		Condition:    r.Condition,
		Description:  r.Description,
		Mileage:      r.Mileage,
		Color:        r.Color,
		Engine:       r.Engine,
		Transmission: r.Transmission,
		FuelType:     r.FuelType,
		IsActive:     r.IsActive,
		SellerID:     r.SellerID,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	c.SetImages(r.ImageURLs)
	return c
}

func carsToModels(recs []carRecord) []models.Car {
	out := make([]models.Car, 0, len(recs))
	for i := range recs {
		out = append(out, carToModel(&recs[i]))
	}
	return out
}
