package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/carmarket/backend/internal/logging"
	"github.com/carmarket/backend/internal/media"
	"github.com/carmarket/backend/internal/models"
	"github.com/carmarket/backend/internal/storage"
	"github.com/carmarket/backend/internal/validation"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

type CarService struct {
	store   storage.Store
	media   media.Gateway
	catalog *validation.Catalog
	folder  string
}

func NewCarService(store storage.Store, gw media.Gateway, catalog *validation.Catalog, folder string) *CarService {
	return &CarService{
		store:   store,
		media:   gw,
		catalog: catalog,
		folder:  folder,
	}
}

// ListCarsParams holds the raw listing query values.
type ListCarsParams struct {
	Search    string
	Make      string
	Model     string
	Location  string
	Condition string
	MinPrice  string
	MaxPrice  string
	MinYear   string
	MaxYear   string
	Page      string
	PerPage   string
	SortBy    string
	SortOrder string
}

// pagination never fails: bad values fall back to the defaults.
func (p ListCarsParams) pagination() (page, perPage int) {
	page, err := strconv.Atoi(strings.TrimSpace(p.Page))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err = strconv.Atoi(strings.TrimSpace(p.PerPage))
	if err != nil || perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

func parseBound(name, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, ok := models.FormField(raw).Float()
	if !ok {
		return nil, badRequest("Invalid " + name)
	}
	return &v, nil
}

func (p ListCarsParams) filter() (storage.CarFilter, error) {
	f := storage.CarFilter{
		Search:     strings.TrimSpace(p.Search),
		Make:       strings.TrimSpace(p.Make),
		Model:      strings.TrimSpace(p.Model),
		Location:   strings.TrimSpace(p.Location),
		ActiveOnly: true,
		SortDesc:   !strings.EqualFold(strings.TrimSpace(p.SortOrder), "asc"),
	}

	if p.Condition != "" {
		if !validation.IsValidCondition(p.Condition) {
			return f, badRequest("Invalid condition")
		}
		f.Condition = p.Condition
	}

	var err error
	if f.MinPrice, err = parseBound("minPrice", p.MinPrice); err != nil {
		return f, err
	}
	if f.MaxPrice, err = parseBound("maxPrice", p.MaxPrice); err != nil {
		return f, err
	}
	if f.MinYear, err = parseBound("minYear", p.MinYear); err != nil {
		return f, err
	}
	if f.MaxYear, err = parseBound("maxYear", p.MaxYear); err != nil {
		return f, err
	}

	sortBy, ok := storage.ParseSortField(strings.TrimSpace(p.SortBy))
	if !ok {
		return f, badRequest("Invalid sortBy")
	}
	f.SortBy = sortBy
	return f, nil
}

// List returns one page of active listings. The page and the total count are
// fetched concurrently.
func (s *CarService) List(ctx context.Context, params ListCarsParams) (*models.ListCarsResponse, error) {
	f, err := params.filter()
	if err != nil {
		return nil, err
	}
	page, perPage := params.pagination()
	f.Offset = (page - 1) * perPage
	f.Limit = perPage

	var (
		cars  []models.Car
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cars, err = s.store.ListCars(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.CountCars(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if cars == nil {
		cars = []models.Car{}
	}
	return &models.ListCarsResponse{
		Data:    cars,
		Page:    page,
		PerPage: perPage,
		Total:   total,
	}, nil
}

func (s *CarService) Get(ctx context.Context, id uint) (*models.Car, error) {
	car, err := s.store.GetCar(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrCarNotFound
	}
	return car, err
}

func requiredString(f models.Field) bool {
	return f.Present() && f.Quoted && validation.IsNonEmptyString(f.Raw)
}

func parseYear(f models.Field) (int, bool) {
	year, ok := f.Int()
	return year, ok && validation.IsValidYear(float64(year))
}

func parsePrice(f models.Field) (float64, bool) {
	price, ok := f.Float()
	return price, ok && validation.IsPositivePrice(price)
}

// parseMileage returns nil for an absent or null mileage.
func parseMileage(f models.Field) (*int, bool) {
	if !f.Present() {
		return nil, true
	}
	m, ok := f.Int()
	if !ok || m < 0 {
		return nil, false
	}
	return &m, true
}

// Create validates a new listing, uploads its images and stores it.
func (s *CarService) Create(ctx context.Context, sellerID uint, in *models.CarInput, files []media.File) (*models.Car, error) {
	log := logging.FromContext(ctx).WithField("op", "CreateCar")

	if !requiredString(in.Make) || !requiredString(in.Model) || !in.Year.Present() || !in.Price.Present() ||
		!requiredString(in.Location) || in.Condition.Blank() {
		return nil, badRequest("Missing or invalid required fields")
	}
	if !s.catalog.IsKnownMake(in.Make.Raw) {
		return nil, badRequest("Unknown make")
	}
	if !validation.IsKnownModel(in.Model.Raw) {
		return nil, badRequest("Invalid model")
	}
	year, ok := parseYear(in.Year)
	if !ok {
		return nil, badRequest("Invalid year")
	}
	price, ok := parsePrice(in.Price)
	if !ok {
		return nil, badRequest("Invalid price")
	}
	if !validation.IsValidCondition(in.Condition.Raw) {
		return nil, badRequest("Invalid condition")
	}
	mileage, ok := parseMileage(in.Mileage)
	if !ok {
		return nil, badRequest("Invalid mileage")
	}
	isActive := true
	if in.IsActive.Present() {
		if isActive, ok = in.IsActive.Bool(); !ok {
			return nil, badRequest("Invalid isActive")
		}
	}

	if _, err := s.store.GetUser(ctx, sellerID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSellerNotFound
		}
		return nil, err
	}

	if len(files) > models.MaxImages {
		files = files[:models.MaxImages]
	}
	uploaded := media.UploadAll(ctx, s.media, files, s.folder)
	if uploaded.AllFailed() {
		log.WithField("attempted", len(files)).Warn("every image upload failed")
		return nil, ErrUploadFailed
	}

	car := &models.Car{
		Make:         in.Make.Raw,
		Model:        in.Model.Raw,
		Year:         year,
		Price:        price,
		Location:     in.Location.Raw,
		Condition:    in.Condition.Raw,
		Description:  in.Description.StringPtr(),
		Mileage:      mileage,
		Color:        in.Color.StringPtr(),
		Engine:       in.Engine.StringPtr(),
		Transmission: in.Transmission.StringPtr(),
		FuelType:     in.FuelType.StringPtr(),
		IsActive:     isActive,
		SellerID:     sellerID,
	}
	car.SetImages(uploaded.URLs)

	if err := s.store.CreateCar(ctx, car); err != nil {
		media.DeleteAll(ctx, s.media, uploaded.URLs)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSellerNotFound
		}
		return nil, err
	}
	log.WithField("car_id", car.ID).Info("listing created")
	return car, nil
}

func (s *CarService) owned(ctx context.Context, userID, carID uint) (*models.Car, error) {
	car, err := s.Get(ctx, carID)
	if err != nil {
		return nil, err
	}
	if car.SellerID != userID {
		return nil, ErrForbidden
	}
	return car, nil
}

// applyFields copies the supplied fields onto car, checking each one.
func (s *CarService) applyFields(car *models.Car, in *models.CarInput) error {
	if in.Year.Set {
		year, ok := parseYear(in.Year)
		if !ok {
			return badRequest("Invalid year")
		}
		car.Year = year
	}
	if in.Price.Set {
		price, ok := parsePrice(in.Price)
		if !ok {
			return badRequest("Invalid price")
		}
		car.Price = price
	}
	if in.Make.Set && !requiredString(in.Make) {
		return badRequest("Invalid make")
	}
	if in.Model.Set && !requiredString(in.Model) {
		return badRequest("Invalid model")
	}
	if in.Make.Set {
		if !s.catalog.IsKnownMake(in.Make.Raw) {
			return badRequest("Unknown make")
		}
		car.Make = in.Make.Raw
	}
	if in.Model.Set {
		car.Model = in.Model.Raw
	}
	if in.Condition.Set {
		if !in.Condition.Present() || !validation.IsValidCondition(in.Condition.Raw) {
			return badRequest("Invalid condition")
		}
		car.Condition = in.Condition.Raw
	}
	if in.Location.Set {
		if !requiredString(in.Location) {
			return badRequest("Invalid location")
		}
		car.Location = in.Location.Raw
	}
	if in.Mileage.Set {
		mileage, ok := parseMileage(in.Mileage)
		if !ok {
			return badRequest("Invalid mileage")
		}
		car.Mileage = mileage
	}
	if in.IsActive.Set {
		active, ok := in.IsActive.Bool()
		if !ok {
			return badRequest("Invalid isActive")
		}
		car.IsActive = active
	}

	optional := []struct {
		field *models.Field
		dst   **string
	}{
		{&in.Description, &car.Description},
		{&in.Color, &car.Color},
		{&in.Engine, &car.Engine},
		{&in.Transmission, &car.Transmission},
		{&in.FuelType, &car.FuelType},
	}
	for _, o := range optional {
		if o.field.Set {
			*o.dst = o.field.StringPtr()
		}
	}
	return nil
}

// Update applies a partial update. New images are appended after the retained
// ones; uploads that fail are dropped.
func (s *CarService) Update(ctx context.Context, userID, carID uint, in *models.CarInput, files []media.File) (*models.Car, error) {
	log := logging.FromContext(ctx).WithField("op", "UpdateCar").WithField("car_id", carID)

	if !in.HasChanges() && len(files) == 0 {
		return nil, badRequest("No updatable fields or images provided")
	}

	car, err := s.owned(ctx, userID, carID)
	if err != nil {
		return nil, err
	}
	if err := s.applyFields(car, in); err != nil {
		return nil, err
	}

	if len(files) > models.MaxImages {
		files = files[:models.MaxImages]
	}
	uploaded := media.UploadAll(ctx, s.media, files, s.folder)
	if len(uploaded.Failed) > 0 {
		log.WithField("failed", len(uploaded.Failed)).Warn("dropping failed image uploads")
	}

	retained := car.ImageURLs
	var purge []string
	if target := strings.TrimSpace(in.ImageToDelete.String()); in.ImageToDelete.Present() && target != "" {
		retained = make([]string, 0, len(car.ImageURLs))
		for _, u := range car.ImageURLs {
			if u != target {
				retained = append(retained, u)
			}
		}
		if car.HasImage(target) {
			purge = append(purge, target)
		}
	}

	merged := append(append([]string{}, retained...), uploaded.URLs...)
	if len(merged) > models.MaxImages {
		// Uploads past the cap are never referenced.
		purge = append(purge, merged[models.MaxImages:]...)
	}
	car.SetImages(merged)

	if err := s.store.UpdateCar(ctx, car); err != nil {
		media.DeleteAll(ctx, s.media, uploaded.URLs)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}

	if failed := media.DeleteAll(ctx, s.media, purge); len(failed) > 0 {
		log.WithField("failed", len(failed)).Warn("image cleanup incomplete")
	}
	return car, nil
}

// Delete removes a listing and, best effort, its images.
func (s *CarService) Delete(ctx context.Context, userID, carID uint) (*models.Car, error) {
	log := logging.FromContext(ctx).WithField("op", "DeleteCar").WithField("car_id", carID)

	car, err := s.owned(ctx, userID, carID)
	if err != nil {
		return nil, err
	}

	if failed := media.DeleteAll(ctx, s.media, car.ImageURLs); len(failed) > 0 {
		log.WithField("failed", len(failed)).Warn("some listing images were not deleted")
	}

	deleted, err := s.store.DeleteCar(ctx, carID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}
	return deleted, nil
}

// UploadImages stores images without attaching them to a listing.
func (s *CarService) UploadImages(ctx context.Context, files []media.File) ([]string, error) {
	if len(files) == 0 {
		return nil, badRequest("At least one image file required")
	}
	if len(files) > models.MaxImages {
		files = files[:models.MaxImages]
	}
	uploaded := media.UploadAll(ctx, s.media, files, s.folder)
	if uploaded.AllFailed() {
		return nil, ErrUploadFailed
	}
	return uploaded.URLs, nil
}
