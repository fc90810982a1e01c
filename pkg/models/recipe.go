package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Station string

const (
	HotStation    Station = "hot"
	ColdStation   Station = "cold"
	PastryStation Station = "pastry"
	OtherStation  Station = "other"
)

// DefaultStations is the station set every catalog recognizes.
var DefaultStations = []Station{HotStation, ColdStation, PastryStation, OtherStation}

// Ingredient is an informational recipe line. The planning engine never consumes it.
type Ingredient struct {
	Name     string  `json:"name" yaml:"name"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
	Unit     string  `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Ingredients is persisted as a JSON column.
type Ingredients []Ingredient

func (in Ingredients) Value() (driver.Value, error) {
	if in == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(in)
}

func (in *Ingredients) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*in = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Ingredients", src)
	}
	return json.Unmarshal(raw, in)
}

// Recipe is a catalog entry that produces BaseYield portions per batch.
type Recipe struct {
	ID          string      `json:"id" db:"id"`                               // Caller supplied or generated UUID
	Name        string      `json:"name" db:"name"`                           // Display name (e.g., "Tortilla")
	Description string      `json:"description,omitempty" db:"description"`   // Free text
	Station     Station     `json:"station" db:"station"`                     // Kitchen station producing it
	BaseYield   float64     `json:"base_yield" db:"base_yield"`               // Portions per batch, always > 0
	PrepMinutes int         `json:"prep_minutes,omitempty" db:"prep_minutes"` // Informational
	CookMinutes int         `json:"cook_minutes,omitempty" db:"cook_minutes"` // Informational
	Ingredients Ingredients `json:"ingredients,omitempty" db:"ingredients"`   // Informational
	Version     int         `json:"version" db:"version"`                     // Bumped on every explicit edit
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}
