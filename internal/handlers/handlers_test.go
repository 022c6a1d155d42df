package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carmarket/backend/internal/auth"
	"github.com/carmarket/backend/internal/media"
	"github.com/carmarket/backend/internal/models"
	"github.com/carmarket/backend/internal/ratelimit"
	"github.com/carmarket/backend/internal/services"
	"github.com/carmarket/backend/internal/storage"
	"github.com/carmarket/backend/internal/validation"
)

type memoryGateway struct {
	mu      sync.Mutex
	fail    map[string]bool
	deleted []string
}

func (g *memoryGateway) Upload(ctx context.Context, f media.File, folder string) (string, error) {
	if g.fail[f.Name] {
		return "", errors.New("host down")
	}
	return "https://img.test/" + folder + "/" + f.Name, nil
}

func (g *memoryGateway) Delete(ctx context.Context, u string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, u)
	return nil
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("db down") }

type brokenStore struct {
	*storage.MemoryStore
}

func (brokenStore) ListUsersWithCars(ctx context.Context) ([]models.UserWithCars, error) {
	return nil, errors.New("connection reset by peer")
}

type testServer struct {
	handler http.Handler
	gw      *memoryGateway
}

func newTestServer(t *testing.T, opts Options, store storage.Store, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	gw := &memoryGateway{fail: map[string]bool{}}
	tokens := auth.NewTokenService("test-secret", time.Hour)
	if opts.MaxImageBytes == 0 {
		opts.MaxImageBytes = 1 << 20
	}
	router := NewRouter(RouterConfig{
		Cars:        services.NewCarService(store, gw, validation.DefaultCatalog(), "cars"),
		Users:       services.NewUserService(store, gw, tokens),
		Wishlist:    services.NewWishlistService(store),
		Tokens:      tokens,
		Store:       store,
		AuthLimiter: limiter,
		Options:     opts,
	})
	return &testServer{handler: router, gw: gw}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type upload struct {
	name, contentType string
}

func (s *testServer) multipart(t *testing.T, method, path, token string, fields map[string]string, files []upload) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="images"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("image-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[models.ErrorResponse](t, rec).Error
}

func (s *testServer) register(t *testing.T, email string) models.AuthResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"name": "Ali", "email": email, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.AuthResponse](t, rec)
}

func carForm() map[string]string {
	return map[string]string{
		"make":      "Toyota",
		"model":     "Corolla",
		"year":      "2020",
		"price":     "4500000",
		"location":  "Lahore",
		"condition": "Used",
	}
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, Options{}, nil, nil)

	rec := srv.do(t, http.MethodGet, "/api", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Backend is healthy!"}`, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(failingPinger{}).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRegisterLoginFlow(t *testing.T) {
	srv := newTestServer(t, Options{}, nil, nil)

	res := srv.register(t, "ali@example.com")
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "ali@example.com", res.User.Email)

	rec := srv.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"name": "Ali", "email": "ali@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email already in use", errorOf(t, rec))

	rec = srv.do(t, http.MethodPost, "/api/users", "", map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[models.ErrorResponse](t, rec)
	assert.Equal(t, "Name is required", body.Error)
	assert.Equal(t, "Password is required", body.Errors["password"])

	rec = srv.do(t, http.MethodPost, "/api/auth", "", map[string]string{"email": "ali@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	login := decode[models.AuthResponse](t, rec)
	assert.Equal(t, res.User.ID, login.User.ID)

	rec = srv.do(t, http.MethodPost, "/api/auth", "", map[string]string{"email": "ali@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", errorOf(t, rec))

	rec = srv.do(t, http.MethodPost, "/api/auth", "", map[string]string{"email": "ali@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email and password required", errorOf(t, rec))

	req := httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", errorOf(t, rec))
}

func TestCreateCarMultipart(t *testing.T) {
	srv := newTestServer(t, Options{}, nil, nil)
	token := srv.register(t, "seller@example.com").Token

	rec := srv.multipart(t, http.MethodPost, "/api/cars", "", carForm(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", errorOf(t, rec))

	srv.gw.fail["b.jpg"] = true
	rec = srv.multipart(t, http.MethodPost, "/api/cars", token, carForm(), []upload{
		{"a.jpg", "image/jpeg"}, {"b.jpg", "image/jpeg"}, {"c.png", "image/png"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	car := decode[models.Car](t, rec)
	assert.Equal(t, []string{"https://img.test/cars/a.jpg", "https://img.test/cars/c.png"}, car.ImageURLs)
	require.NotNil(t, car.ImageURL)
	assert.Equal(t, "https://img.test/cars/a.jpg", *car.ImageURL)
	assert.True(t, car.IsActive)

	srv.gw.fail["a.jpg"] = true
	rec = srv.multipart(t, http.MethodPost, "/api/cars", token, carForm(), []upload{{"a.jpg", "image/jpeg"}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Failed to upload images", errorOf(t, rec))

	form := carForm()
	form["make"] = "Lada"
	rec = srv.multipart(t, http.MethodPost, "/api/cars", token, form, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unknown make", errorOf(t, rec))
}

func TestCreateCarDataField(t *testing.T) {
	srv := newTestServer(t, Options{}, nil, nil)
	token := srv.register(t, "seller@example.com").Token

	data := `{"make":"Honda","model":"Civic","year":2019,"price":3900000,"location":"Karachi","condition":"Used","mileage":45000}`
	rec := srv.multipart(t, http.MethodPost, "/api/cars", token, map[string]string{"data": data}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	car := decode[models.Car](t, rec)
	assert.Equal(t, "Civic", car.Model)
	require.NotNil(t, car.Mileage)
	assert.Equal(t, 45000, *car.Mileage)
	assert.Nil(t, car.ImageURL)
	assert.Equal(t, []string{}, car.ImageURLs)
}

func TestCarOwnershipAndUpdate(t *testing.T) {
	srv := newTestServer(t, Options{}, nil, nil)
	seller := srv.register(t, "seller@example.com")
	other := srv.register(t, "other@example.com")

	rec := srv.multipart(t, http.MethodPost, "/api/cars", seller.Token, carForm(), []upload{{"a.jpg", "image/jpeg"}, {"b.jpg", "image/jpeg"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	car := decode[models.Car](t, rec)
	path := "/api/cars/" + strconv.FormatUint(uint64(car.ID), 10)

	rec = srv.do(t, http.MethodPut, path, other.Token, map[string]interface{}{"price": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", errorOf(t, rec))

	rec = srv.do(t, http.MethodPut, path, seller.Token, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No updatable fields or images provided", errorOf(t, rec))

	rec = srv.multipart(t, http.MethodPut, path, seller.Token,
		map[string]string{"imageToDelete": "https://img.test/cars/a.jpg", "color": "White"},
		[]upload{{"c.jpg", "image/jpeg"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Car](t, rec)
	assert.Equal(t, []string{"https://img.test/cars/b.jpg", "https://img.test/cars/c.jpg"}, updated.ImageURLs)
	assert.Equal(t, "https://img.test/cars/b.jpg", *updated.ImageURL)
	require.NotNil(t, updated.Color)
	assert.Equal(t, "White", *updated.Color)
	assert.Contains(t, srv.gw.deleted, "https://img.test/cars/a.jpg")

	rec = srv.do(t, http.MethodPut, path, seller.Token, map[string]interface{}{"year": 1800})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid year", errorOf(t, rec))

	rec = srv.do(t, http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodDelete, path, other.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodDelete, path, seller.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, car.ID, decode[models.Car](t, rec).ID)

	rec = srv.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Car not found", errorOf(t, rec))

	rec = srv.do(t, http.MethodGet, "/api/cars/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid car id", errorOf(t, rec))

	rec = srv.do(t, http.MethodGet, "/api/cars/0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCarsQuery(t *testing.T) {
	srv := newTestServer(t, Options{}, nil, nil)
	token := srv.register(t, "seller@example.com").Token

	for _, model := range []string{"Corolla", "Camry", "Yaris"} {
		form := carForm()
		form["model"] = model
		rec := srv.multipart(t, http.MethodPost, "/api/cars", token, form, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := srv.do(t, http.MethodGet, "/api/cars?perPage=2&page=1&sortBy=model&sortOrder=asc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[models.ListCarsResponse](t, rec)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.PerPage)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Camry", page.Data[0].Model)
	assert.Equal(t, "Corolla", page.Data[1].Model)

	rec = srv.do(t, http.MethodGet, "/api/cars?search=yar", "", nil)
	page = decode[models.ListCarsResponse](t, rec)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PerPage)

	rec = srv.do(t, http.MethodGet, "/api/cars?condition=Broken", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid condition", errorOf(t, rec))
}

func TestUsersEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{}, nil, nil)
	ali := srv.register(t, "ali@example.com")
	sara := srv.register(t, "sara@example.com")
	aliPath := "/api/users/" + strconv.FormatUint(uint64(ali.User.ID), 10)

	rec := srv.do(t, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/users", ali.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]map[string]interface{}](t, rec)
	require.Len(t, users, 2)
	assert.Contains(t, users[0], "cars")
	assert.NotContains(t, users[0], "password")
	assert.NotContains(t, users[0], "passwordHash")

	rec = srv.do(t, http.MethodGet, aliPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[map[string]interface{}](t, rec)
	assert.Equal(t, []interface{}{}, profile["cars"])
	assert.Equal(t, []interface{}{}, profile["wishlist"])

	rec = srv.do(t, http.MethodGet, "/api/users/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", errorOf(t, rec))

	rec = srv.do(t, http.MethodGet, "/api/users/x", "", nil)
	assert.Equal(t, "Invalid user id", errorOf(t, rec))

	rec = srv.do(t, http.MethodPut, aliPath, sara.Token, map[string]string{"name": "Hacker"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodPut, aliPath, ali.Token, map[string]interface{}{"password": 12345678})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password must be a string with at least 8 characters", errorOf(t, rec))

	rec = srv.do(t, http.MethodPut, aliPath, ali.Token, map[string]string{"phone": "12345"})
	assert.Equal(t, "Invalid phone", errorOf(t, rec))

	rec = srv.do(t, http.MethodPut, aliPath, ali.Token, map[string]string{"email": "sara@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodPut, aliPath, ali.Token, map[string]string{"name": "Ali Khan", "phone": "+923001234567"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ali Khan", decode[models.User](t, rec).Name)

	rec = srv.do(t, http.MethodDelete, aliPath, ali.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ali.User.ID, decode[models.User](t, rec).ID)

	rec = srv.do(t, http.MethodGet, aliPath, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWishlistEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{}, nil, nil)
	token := srv.register(t, "ali@example.com").Token
	rec := srv.multipart(t, http.MethodPost, "/api/cars", token, carForm(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	car := decode[models.Car](t, rec)

	rec = srv.do(t, http.MethodGet, "/api/wishlist", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/wishlist", token, map[string]interface{}{})
	assert.Equal(t, "carId is required", errorOf(t, rec))

	rec = srv.do(t, http.MethodPost, "/api/wishlist", token, map[string]interface{}{"carId": 404})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for i := 0; i < 2; i++ {
		rec = srv.do(t, http.MethodPost, "/api/wishlist", token, map[string]interface{}{"carId": car.ID})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]models.Car](t, rec), 1)
	}

	rec = srv.do(t, http.MethodGet, "/api/wishlist", token, nil)
	assert.Len(t, decode[[]models.Car](t, rec), 1)

	rec = srv.do(t, http.MethodDelete, "/api/wishlist?carId="+strconv.FormatUint(uint64(car.ID), 10), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = srv.do(t, http.MethodDelete, "/api/wishlist", token, map[string]string{"carId": "abc"})
	assert.Equal(t, "Invalid carId", errorOf(t, rec))
}

func TestUploadEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{}, nil, nil)
	token := srv.register(t, "ali@example.com").Token

	rec := srv.multipart(t, http.MethodPost, "/api/cars/upload", "", nil, []upload{{"a.jpg", "image/jpeg"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.multipart(t, http.MethodPost, "/api/cars/upload", token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "At least one image file required", errorOf(t, rec))

	rec = srv.multipart(t, http.MethodPost, "/api/cars/upload", token, nil, []upload{{"a.jpg", "image/jpeg"}, {"doc.txt", "text/plain"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"https://img.test/cars/a.jpg"}, decode[models.ImageUploadResponse](t, rec).URLs)
}

func TestLargeUploadsLeaveNoTempFiles(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	srv := newTestServer(t, Options{MaxImageBytes: 25 << 20}, nil, nil)
	token := srv.register(t, "ali@example.com").Token

	post := func(path string, fields map[string]string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for k, v := range fields {
			require.NoError(t, mw.WriteField(k, v))
		}
		photo := bytes.Repeat([]byte{0xFF}, 20<<20)
		for _, name := range []string{"front.jpg", "back.jpg"} {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", `form-data; name="images"; filename="`+name+`"`)
			h.Set("Content-Type", "image/jpeg")
			part, err := mw.CreatePart(h)
			require.NoError(t, err)
			_, err = part.Write(photo)
			require.NoError(t, err)
		}
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, path, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := post("/api/cars", carForm())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = post("/api/cars/upload", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMethodNotAllowedAndOptions(t *testing.T) {
	srv := newTestServer(t, Options{}, nil, nil)

	rec := srv.do(t, http.MethodPatch, "/api/cars", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
	assert.Equal(t, "Method PATCH Not Allowed", errorOf(t, rec))

	rec = srv.do(t, http.MethodPost, "/api/cars/1", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, PUT, DELETE", rec.Header().Get("Allow"))

	rec = srv.do(t, http.MethodOptions, "/api/wishlist", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, DELETE", rec.Header().Get("Allow"))

	req := httptest.NewRequest(http.MethodOptions, "/api/cars", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestInternalErrorsAreRedactedInProduction(t *testing.T) {
	for _, production := range []bool{false, true} {
		store := brokenStore{storage.NewMemoryStore()}
		srv := newTestServer(t, Options{Production: production}, store, nil)
		token := srv.register(t, "ali@example.com").Token

		rec := srv.do(t, http.MethodGet, "/api/users", token, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		if production {
			assert.Equal(t, "Internal server error", errorOf(t, rec))
		} else {
			assert.Equal(t, "connection reset by peer", errorOf(t, rec))
		}
	}
}

func TestAuthRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{}, nil, ratelimit.NewMemoryLimiter(2, time.Hour))
	body := map[string]string{"email": "ali@example.com", "password": "password123"}

	for i := 0; i < 2; i++ {
		rec := srv.do(t, http.MethodPost, "/api/auth", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := srv.do(t, http.MethodPost, "/api/auth", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", errorOf(t, rec))

	// Listing reads are not throttled.
	rec = srv.do(t, http.MethodGet, "/api/cars", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
