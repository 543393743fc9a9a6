package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/umputun/fieldtrack/app/store/enums"
)

// Coordinates is a latitude/longitude pair in degrees
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is a named, geographically positioned service site
type Location struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Address     string       `json:"address,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Job is a unit of work tied to exactly one Location
type Job struct {
	ID          string          `json:"id"`
	LocationID  string          `json:"locationId"`
	Type        enums.JobType   `json:"type"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Status      enums.JobStatus `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt,omitzero"`
}

// Snapshot is a consistent copy of both collections
type Snapshot struct {
	Locations []Location `json:"locations"`
	Jobs      []Job      `json:"jobs"`
}

// NewLocation is the input of AddLocation
type NewLocation struct {
	Name        string
	Address     string
	Coordinates *Coordinates
}

// NewJob is the input of AddJob
type NewJob struct {
	LocationID  string
	Type        string
	Title       string
	Description string
}

// LocationUpdate is the input of EditLocation. Nil Address keeps the current one.
type LocationUpdate struct {
	Name    string
	Address *string
}

// JobUpdate is the input of EditJob
type JobUpdate struct {
	Title       string
	Description string
	Type        string
}

// Validate checks coordinates are finite and within WGS84 bounds
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return &ValidationError{Field: "coordinates", Reason: fmt.Sprintf("latitude %v out of range", c.Lat)}
	}
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || c.Lng < -180 || c.Lng > 180 {
		return &ValidationError{Field: "coordinates", Reason: fmt.Sprintf("longitude %v out of range", c.Lng)}
	}
	return nil
}

// String returns coordinates as "lat, lng"
func (c Coordinates) String() string {
	return fmt.Sprintf("%.5f, %.5f", c.Lat, c.Lng)
}

// ParseCoordinates parses latitude and longitude from text input.
// Both values are required, comma as decimal separator is accepted.
func ParseCoordinates(lat, lng string) (*Coordinates, error) {
	if strings.TrimSpace(lat) == "" || strings.TrimSpace(lng) == "" {
		return nil, &ValidationError{Field: "coordinates", Reason: "required"}
	}
	parse := func(v string) (float64, error) {
		return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
	}
	la, err := parse(lat)
	if err != nil {
		return nil, &ValidationError{Field: "coordinates", Reason: fmt.Sprintf("can't parse latitude %q", lat)}
	}
	ln, err := parse(lng)
	if err != nil {
		return nil, &ValidationError{Field: "coordinates", Reason: fmt.Sprintf("can't parse longitude %q", lng)}
	}
	res := &Coordinates{Lat: la, Lng: ln}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}
