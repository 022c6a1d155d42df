// Package validation holds the input predicates shared by the handlers.
package validation

import (
	_ "embed"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ConditionNew  = "New"
	ConditionUsed = "Used"

	MinYear           = 1900
	MinPasswordLength = 8
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^(?:\+92|0)?3\d{2}\d{7}$`)
	phoneStrip   = strings.NewReplacer(" ", "", "-", "")
)

//go:embed makes.yaml
var defaultMakesYAML []byte

// IsNonEmptyString reports whether s has any non-whitespace content.
func IsNonEmptyString(s string) bool {
	return strings.TrimSpace(s) != ""
}

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidPhone accepts Pakistani mobile numbers, with or without the +92 or 0
// prefix. Spaces and dashes are ignored.
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phoneStrip.Replace(phone))
}

// IsValidYear allows model years from 1900 up to next calendar year.
func IsValidYear(year float64) bool {
	return isFinite(year) && year >= MinYear && year <= float64(time.Now().Year()+1)
}

func IsPositivePrice(price float64) bool {
	return isFinite(price) && price > 0
}

// IsKnownModel only checks the model is present; there is no per-make list.
func IsKnownModel(model string) bool {
	return IsNonEmptyString(model)
}

func IsValidCondition(condition string) bool {
	return condition == ConditionNew || condition == ConditionUsed
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Catalog is the allow-list of vehicle makes accepted on listings.
type Catalog struct {
	makes map[string]struct{}
	names []string
}

func NewCatalog(makes []string) *Catalog {
	c := &Catalog{makes: make(map[string]struct{}, len(makes))}
	for _, m := range makes {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := c.makes[m]; ok {
			continue
		}
		c.makes[m] = struct{}{}
		c.names = append(c.names, m)
	}
	return c
}

// DefaultCatalog loads the embedded makes list.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultMakesYAML)
	if err != nil {
		panic(fmt.Sprintf("validation: embedded makes list: %v", err))
	}
	return c
}

// ParseCatalog reads a YAML document of the form `makes: [..]`.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Makes []string `yaml:"makes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Makes) == 0 {
		return nil, fmt.Errorf("no makes listed")
	}
	return NewCatalog(doc.Makes), nil
}

// IsKnownMake is an exact, case-sensitive membership test.
func (c *Catalog) IsKnownMake(name string) bool {
	_, ok := c.makes[name]
	return ok
}

func (c *Catalog) Makes() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}
