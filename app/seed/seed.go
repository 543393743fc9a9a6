// Package seed imports initial locations and jobs from a YAML file
package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"

	"github.com/umputun/fieldtrack/app/store"
	"github.com/umputun/fieldtrack/app/store/enums"
)

// File is the seed document
type File struct {
	Locations []Location `yaml:"locations"`
}

// Location is a seeded location with its jobs
type Location struct {
	Name    string   `yaml:"name"`
	Address string   `yaml:"address"`
	Lat     *float64 `yaml:"lat"`
	Lng     *float64 `yaml:"lng"`
	Jobs    []Job    `yaml:"jobs"`
}

// Job is a seeded job. Status is optional, planned by default.
type Job struct {
	Type        string `yaml:"type"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
}

// Store defines store operations used by import
type Store interface {
	ListLocations() []store.Location
	AddLocation(req store.NewLocation) (store.Location, error)
	AddJob(req store.NewJob) (store.Job, error)
	AdvanceJobStatus(id string) (store.Job, error)
}

// Load reads and parses seed file, unknown fields are rejected
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var res File
	if err := dec.Decode(&res); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &res, nil
}

// Apply imports seed into an empty store through regular store operations.
// Non-empty store is left untouched. The whole file is checked first, a rejected
// seed leaves the store empty. Returns number of imported locations and jobs.
func Apply(st Store, f *File) (locations, jobs int, err error) {
	if len(st.ListLocations()) > 0 {
		log.Printf("[INFO] store is not empty, seed skipped")
		return 0, 0, nil
	}
	if err := f.Validate(); err != nil {
		return 0, 0, err
	}

	for i, sl := range f.Locations {
		loc, err := st.AddLocation(store.NewLocation{Name: sl.Name, Address: sl.Address, Coordinates: sl.coordinates()})
		if err != nil && !store.IsPersistence(err) {
			return locations, jobs, fmt.Errorf("location %d: %w", i+1, err)
		}
		locations++

		for k, sj := range sl.Jobs {
			job, err := st.AddJob(store.NewJob{LocationID: loc.ID, Type: sj.Type, Title: sj.Title, Description: sj.Description})
			if err != nil && !store.IsPersistence(err) {
				return locations, jobs, fmt.Errorf("location %d, job %d: %w", i+1, k+1, err)
			}
			jobs++
			if err := advanceTo(st, job, sj.Status); err != nil {
				return locations, jobs, fmt.Errorf("location %d, job %d: %w", i+1, k+1, err)
			}
		}
	}
	log.Printf("[INFO] seeded %d locations and %d jobs", locations, jobs)
	return locations, jobs, nil
}

// Validate checks every location and job the way store operations do, without touching the store
func (f *File) Validate() error {
	for i, sl := range f.Locations {
		if strings.TrimSpace(sl.Name) == "" {
			return fmt.Errorf("location %d: %w", i+1, &store.ValidationError{Field: "name", Reason: "required"})
		}
		coords := sl.coordinates()
		if coords == nil {
			return fmt.Errorf("location %d: %w", i+1, &store.ValidationError{Field: "coordinates", Reason: "required"})
		}
		if err := coords.Validate(); err != nil {
			return fmt.Errorf("location %d: %w", i+1, err)
		}
		for k, sj := range sl.Jobs {
			if err := sj.validate(); err != nil {
				return fmt.Errorf("location %d, job %d: %w", i+1, k+1, err)
			}
		}
	}
	return nil
}

// coordinates returns nil unless both lat and lng are set
func (l Location) coordinates() *store.Coordinates {
	if l.Lat == nil || l.Lng == nil {
		return nil
	}
	return &store.Coordinates{Lat: *l.Lat, Lng: *l.Lng}
}

func (j Job) validate() error {
	if strings.TrimSpace(j.Type) == "" {
		return &store.ValidationError{Field: "type", Reason: "required"}
	}
	if _, err := enums.ParseJobType(j.Type); err != nil {
		return &store.ValidationError{Field: "type", Reason: err.Error()}
	}
	if strings.TrimSpace(j.Title) == "" && strings.TrimSpace(j.Description) == "" {
		return &store.ValidationError{Field: "title", Reason: "title or description required"}
	}
	if j.Status != "" {
		if _, err := enums.ParseJobStatus(j.Status); err != nil {
			return &store.ValidationError{Field: "status", Reason: err.Error()}
		}
	}
	return nil
}

// advanceTo moves new job through the status cycle until it reaches status
func advanceTo(st Store, job store.Job, status string) error {
	if status == "" {
		return nil
	}
	target, err := enums.ParseJobStatus(status)
	if err != nil {
		return &store.ValidationError{Field: "status", Reason: err.Error()}
	}
	for job.Status != target {
		if job, err = st.AdvanceJobStatus(job.ID); err != nil && !store.IsPersistence(err) {
			return err
		}
	}
	return nil
}
