package models

import (
	"time"
)

// MaxImages is the most image URLs a listing keeps.
const MaxImages = 10

type Car struct {
	ID           uint      `json:"id"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Year         int       `json:"year"`
	Price        float64   `json:"price"`
	Location     string    `json:"location"`
	Condition    string    `json:"condition"`
	Description  *string   `json:"description"`
	Mileage      *int      `json:"mileage"`
	Color        *string   `json:"color"`
	Engine       *string   `json:"engine"`
	Transmission *string   `json:"transmission"`
	FuelType     *string   `json:"fuelType"`
	ImageURL     *string   `json:"imageUrl"`
	ImageURLs    []string  `json:"imageUrls"`
	IsActive     bool      `json:"isActive"`
	SellerID     uint      `json:"sellerId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SetImages stores at most MaxImages urls and keeps ImageURL pointing at the
// first one.
func (c *Car) SetImages(urls []string) {
	if len(urls) > MaxImages {
		urls = urls[:MaxImages]
	}
	c.ImageURLs = append(make([]string, 0, len(urls)), urls...)
	c.ImageURL = nil
	if len(c.ImageURLs) > 0 {
		primary := c.ImageURLs[0]
		c.ImageURL = &primary
	}
}

// HasImage reports whether url is one of the listing's images.
func (c *Car) HasImage(url string) bool {
	for _, u := range c.ImageURLs {
		if u == url {
			return true
		}
	}
	return false
}

// CarInput carries listing fields for both create and partial update.
// imageUrl and imageUrls are derived from uploads and never read from input.
type CarInput struct {
	Make          Field `json:"make"`
	Model         Field `json:"model"`
	Year          Field `json:"year"`
	Price         Field `json:"price"`
	Location      Field `json:"location"`
	Condition     Field `json:"condition"`
	Description   Field `json:"description"`
	Mileage       Field `json:"mileage"`
	Color         Field `json:"color"`
	Engine        Field `json:"engine"`
	Transmission  Field `json:"transmission"`
	FuelType      Field `json:"fuelType"`
	IsActive      Field `json:"isActive"`
	ImageToDelete Field `json:"imageToDelete"`
}

// Fields maps wire names to the input's fields.
func (in *CarInput) Fields() map[string]*Field {
	return map[string]*Field{
		"make":          &in.Make,
		"model":         &in.Model,
		"year":          &in.Year,
		"price":         &in.Price,
		"location":      &in.Location,
		"condition":     &in.Condition,
		"description":   &in.Description,
		"mileage":       &in.Mileage,
		"color":         &in.Color,
		"engine":        &in.Engine,
		"transmission":  &in.Transmission,
		"fuelType":      &in.FuelType,
		"isActive":      &in.IsActive,
		"imageToDelete": &in.ImageToDelete,
	}
}

// HasChanges reports whether any field was supplied.
func (in *CarInput) HasChanges() bool {
	for _, f := range in.Fields() {
		if f.Set {
			return true
		}
	}
	return false
}

// ListCarsResponse is one page of listings.
type ListCarsResponse struct {
	Data    []Car `json:"data"`
	Page    int   `json:"page"`
	PerPage int   `json:"perPage"`
	Total   int64 `json:"total"`
}
