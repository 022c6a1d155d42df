package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/carmarket/backend/internal/models"
)

// MongoStore implements Store on MongoDB. Ids stay numeric; they come from
// a counters collection so the HTTP surface is the same for every backend.
type MongoStore struct {
	client   *mongo.Client
	db       *mongo.Database
	users    *mongo.Collection
	cars     *mongo.Collection
	wishlist *mongo.Collection
	counters *mongo.Collection
}

type mongoUserDoc struct {
	ID        uint      `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	Phone     *string   `bson:"phone"`
	Password  string    `bson:"password"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type mongoCarDoc struct {
	ID           uint      `bson:"_id"`
	Make         string    `bson:"make"`
	Model        string    `bson:"model"`
	Year         int       `bson:"year"`
	Price        float64   `bson:"price"`
	Location     string    `bson:"location"`
	Condition    string    `bson:"condition"`
	Description  *string   `bson:"description"`
	Mileage      *int      `bson:"mileage"`
	Color        *string   `bson:"color"`
	Engine       *string   `bson:"engine"`
	Transmission *string   `bson:"transmission"`
	FuelType     *string   `bson:"fuel_type"`
	ImageURLs    []string  `bson:"image_urls"`
	IsActive     bool      `bson:"is_active"`
	SellerID     uint      `bson:"seller_id"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

type mongoWishlistDoc struct {
	UserID    uint      `bson:"user_id"`
	CarID     uint      `bson:"car_id"`
	CreatedAt time.Time `bson:"created_at"`
}

func NewMongoStore(ctx context.Context, mongoURI, dbName string) (*MongoStore, error) {
	if mongoURI == "" || dbName == "" {
		return nil, errors.New("mongo uri and database name are required")
	}

	opts := options.Client().ApplyURI(mongoURI)
	if strings.HasPrefix(mongoURI, "mongodb+srv://") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := newMongoStore(client, client.Database(dbName))

	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("mongo users index: %w", err)
	}
	if _, err := s.wishlist.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "car_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("mongo wishlist index: %w", err)
	}

	// Best-effort query indexes.
	_, _ = s.cars.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "seller_id", Value: 1}}},
		{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "year", Value: 1}}},
	})
	_, _ = s.wishlist.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "car_id", Value: 1}}})

	logrus.WithField("db", dbName).Info("mongodb connected")
	return s, nil
}

func newMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:   client,
		db:       db,
		users:    db.Collection("users"),
		cars:     db.Collection("cars"),
		wishlist: db.Collection("wishlist"),
		counters: db.Collection("counters"),
	}
}

func (s *MongoStore) nextID(ctx context.Context, name string) (uint, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return uint(doc.Seq), nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	id, err := s.nextID(ctx, "users")
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	doc := mongoUserDoc{
		ID:        id,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		Password:  user.PasswordHash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	*user = doc.toModel()
	return nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc mongoUserDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u := doc.toModel()
	return &u, nil
}

func (s *MongoStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) ListUsersWithCars(ctx context.Context) ([]models.UserWithCars, error) {
	var users []mongoUserDoc
	if err := s.findAll(ctx, s.users, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}), &users); err != nil {
		return nil, err
	}
	cars, err := s.findCars(ctx, bson.M{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, err
	}

	bySeller := make(map[uint][]models.Car)
	for _, c := range cars {
		bySeller[c.SellerID] = append(bySeller[c.SellerID], c)
	}
	out := make([]models.UserWithCars, 0, len(users))
	for _, u := range users {
		owned := bySeller[u.ID]
		if owned == nil {
			owned = []models.Car{}
		}
		out = append(out, models.UserWithCars{User: u.toModel(), Cars: owned})
	}
	return out, nil
}

func (s *MongoStore) UpdateUser(ctx context.Context, user *models.User) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"name":       user.Name,
		"email":      user.Email,
		"phone":      user.Phone,
		"password":   user.PasswordHash,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	fresh, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	*user = *fresh
	return nil
}

func (s *MongoStore) DeleteUser(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	owned, err := s.ListCarsBySeller(ctx, id)
	if err != nil {
		return nil, err
	}
	carIDs := make([]uint, 0, len(owned))
	for _, c := range owned {
		carIDs = append(carIDs, c.ID)
	}

	if _, err := s.wishlist.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"user_id": id},
		bson.M{"car_id": bson.M{"$in": carIDs}},
	}}); err != nil {
		return nil, err
	}
	if _, err := s.cars.DeleteMany(ctx, bson.M{"seller_id": id}); err != nil {
		return nil, err
	}
	if _, err := s.users.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *MongoStore) CreateCar(ctx context.Context, car *models.Car) error {
	id, err := s.nextID(ctx, "cars")
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	car.ID = id
	car.CreatedAt = now
	car.UpdatedAt = now
	doc := carToDoc(car)
	if _, err := s.cars.InsertOne(ctx, doc); err != nil {
		return err
	}
	*car = doc.toModel()
	return nil
}

func (s *MongoStore) GetCar(ctx context.Context, id uint) (*models.Car, error) {
	var doc mongoCarDoc
	if err := s.cars.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c := doc.toModel()
	return &c, nil
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

func equalFoldRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: "i"}
}

func carFilterDoc(f CarFilter) bson.M {
	q := bson.M{}
	if f.ActiveOnly {
		q["is_active"] = true
	}
	if f.Search != "" {
		re := containsRegex(f.Search)
		q["$or"] = bson.A{
			bson.M{"make": re},
			bson.M{"model": re},
			bson.M{"location": re},
		}
	}
	if f.Make != "" {
		q["make"] = equalFoldRegex(f.Make)
	}
	if f.Model != "" {
		q["model"] = equalFoldRegex(f.Model)
	}
	if f.Location != "" {
		q["location"] = containsRegex(f.Location)
	}
	if f.Condition != "" {
		q["condition"] = f.Condition
	}
	if r := rangeDoc(f.MinPrice, f.MaxPrice); r != nil {
		q["price"] = r
	}
	if r := rangeDoc(f.MinYear, f.MaxYear); r != nil {
		q["year"] = r
	}
	return q
}

func rangeDoc(lo, hi *float64) bson.M {
	if lo == nil && hi == nil {
		return nil
	}
	r := bson.M{}
	if lo != nil {
		r["$gte"] = *lo
	}
	if hi != nil {
		r["$lte"] = *hi
	}
	return r
}

func (s *MongoStore) ListCars(ctx context.Context, f CarFilter) ([]models.Car, error) {
	dir := 1
	if f.SortDesc {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: f.sortColumn(), Value: dir}, {Key: "_id", Value: -1}}).
		SetSkip(int64(f.Offset))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	return s.findCars(ctx, carFilterDoc(f), opts)
}

func (s *MongoStore) CountCars(ctx context.Context, f CarFilter) (int64, error) {
	return s.cars.CountDocuments(ctx, carFilterDoc(f))
}

func (s *MongoStore) ListCarsBySeller(ctx context.Context, sellerID uint) ([]models.Car, error) {
	return s.findCars(ctx, bson.M{"seller_id": sellerID}, options.Find().SetSort(newestFirst))
}

func (s *MongoStore) UpdateCar(ctx context.Context, car *models.Car) error {
	doc := carToDoc(car)
	res, err := s.cars.UpdateOne(ctx, bson.M{"_id": car.ID}, bson.M{"$set": bson.M{
		"make":         doc.Make,
		"model":        doc.Model,
		"year":         doc.Year,
		"price":        doc.Price,
		"location":     doc.Location,
		"condition":    doc.Condition,
		"description":  doc.Description,
		"mileage":      doc.Mileage,
		"color":        doc.Color,
		"engine":       doc.Engine,
		"transmission": doc.Transmission,
		"fuel_type":    doc.FuelType,
		"image_urls":   doc.ImageURLs,
		"is_active":    doc.IsActive,
		"updated_at":   time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	fresh, err := s.GetCar(ctx, car.ID)
	if err != nil {
		return err
	}
	*car = *fresh
	return nil
}

func (s *MongoStore) DeleteCar(ctx context.Context, id uint) (*models.Car, error) {
	var doc mongoCarDoc
	if err := s.cars.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := s.wishlist.DeleteMany(ctx, bson.M{"car_id": id}); err != nil {
		return nil, err
	}
	c := doc.toModel()
	return &c, nil
}

func (s *MongoStore) AddToWishlist(ctx context.Context, userID, carID uint) error {
	_, err := s.wishlist.InsertOne(ctx, mongoWishlistDoc{
		UserID:    userID,
		CarID:     carID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return err
	}
	return nil
}

func (s *MongoStore) RemoveFromWishlist(ctx context.Context, userID, carID uint) error {
	_, err := s.wishlist.DeleteOne(ctx, bson.M{"user_id": userID, "car_id": carID})
	return err
}

func (s *MongoStore) ListWishlist(ctx context.Context, userID uint) ([]models.Car, error) {
	var entries []mongoWishlistDoc
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if err := s.findAll(ctx, s.wishlist, bson.M{"user_id": userID}, opts, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []models.Car{}, nil
	}

	ids := make([]uint, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.CarID)
	}
	cars, err := s.findCars(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Car, len(cars))
	for _, c := range cars {
		byID[c.ID] = c
	}
	out := make([]models.Car, 0, len(ids))
	for _, id := range ids {
		// Skip entries whose listing disappeared between the two reads.
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MongoStore) findAll(ctx context.Context, col *mongo.Collection, filter interface{}, opts *options.FindOptions, out interface{}) error {
	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func (s *MongoStore) findCars(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]models.Car, error) {
	var docs []mongoCarDoc
	if err := s.findAll(ctx, s.cars, filter, opts, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Car, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (d mongoUserDoc) toModel() models.User {
	return models.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		Phone:        d.Phone,
		PasswordHash: d.Password,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func carToDoc(c *models.Car) mongoCarDoc {
	return mongoCarDoc{
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
		ImageURLs:    append([]string{}, c.ImageURLs...),
		IsActive:     c.IsActive,
		SellerID:     c.SellerID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (d mongoCarDoc) toModel() models.Car {
	c := models.Car{
		ID:           d.ID,
		Make:         d.Make,
		Model:        d.Model,
		Year:         d.Year,
		Price:        d.Price,
		Location:     d.Location,
		Condition:    d.Condition,
		Description:  d.Description,
		Mileage:      d.Mileage,
		Color:        d.Color,
		Engine:       d.Engine,
		Transmission: d.Transmission,
		FuelType:     d.FuelType,
		IsActive:     d.IsActive,
		SellerID:     d.SellerID,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	c.SetImages(d.ImageURLs)
	return c
}
