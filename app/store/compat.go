package store

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/fieldtrack/app/store/enums"
)

// locationRecord is the stored shape of Location as written by any revision
type locationRecord struct {
	ID          flexID     `json:"id"`
	Name        string     `json:"name"`
	Address     string     `json:"address"`
	Coordinates flexCoords `json:"coordinates"`
	CreatedAt   flexTime   `json:"createdAt"`
}

// jobRecord is the stored shape of Job as written by any revision
type jobRecord struct {
	ID          flexID   `json:"id"`
	LocationID  flexID   `json:"locationId"`
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	CreatedAt   flexTime `json:"createdAt"`
	UpdatedAt   flexTime `json:"updatedAt"`
}

// flexID accepts string ids and numeric ids of older revisions
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = flexID(n.String())
	}
	return nil
}

// flexTime accepts ISO-like strings and numeric epoch values, in milliseconds
// when the magnitude is at least 1e11 and seconds otherwise. Unrecognized values
// decode as zero time.
type flexTime time.Time

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = flexTime{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil //nolint:nilerr // bad timestamp is not fatal for the record
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				*f = flexTime(t.UTC())
				return nil
			}
		}
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil //nolint:nilerr // bad timestamp is not fatal for the record
	}
	if math.Abs(v) >= 1e11 {
		*f = flexTime(time.UnixMilli(int64(v)).UTC())
		return nil
	}
	sec, frac := math.Modf(v)
	*f = flexTime(time.Unix(int64(sec), int64(frac*1e9)).UTC())
	return nil
}

// flexCoords accepts {lat,lng}, {lat,lon} and [lat,lng]. Anything else decodes as nil.
type flexCoords struct {
	c *Coordinates
}

func (f *flexCoords) UnmarshalJSON(data []byte) error {
	f.c = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '[' {
		var pair []float64
		if err := json.Unmarshal(data, &pair); err != nil || len(pair) != 2 {
			return nil //nolint:nilerr // unusable coordinates are dropped
		}
		f.c = &Coordinates{Lat: pair[0], Lng: pair[1]}
		return nil
	}

	var obj struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
		Lon *float64 `json:"lon"`
	}
	if err := json.Unmarshal(data, &obj); err != nil || obj.Lat == nil {
		return nil //nolint:nilerr // unusable coordinates are dropped
	}
	switch {
	case obj.Lng != nil:
		f.c = &Coordinates{Lat: *obj.Lat, Lng: *obj.Lng}
	case obj.Lon != nil:
		f.c = &Coordinates{Lat: *obj.Lat, Lng: *obj.Lon}
	}
	return nil
}

// toLocation converts stored record, returns false if the record is unusable
func (r locationRecord) toLocation() (Location, bool) {
	if r.ID == "" {
		log.Printf("[WARN] skip stored location without id, name %q", r.Name)
		return Location{}, false
	}
	name := strings.TrimSpace(r.Name)
	if name == "" {
		log.Printf("[WARN] skip stored location %s without name", r.ID)
		return Location{}, false
	}
	res := Location{ID: string(r.ID), Name: name, Address: strings.TrimSpace(r.Address), CreatedAt: time.Time(r.CreatedAt)}
	if r.Coordinates.c != nil {
		if err := r.Coordinates.c.Validate(); err != nil {
			log.Printf("[WARN] drop coordinates of stored location %s: %v", r.ID, err)
		} else {
			c := *r.Coordinates.c
			res.Coordinates = &c
		}
	}
	return res, true
}

// toJob converts stored record, returns false if the record is unusable
func (r jobRecord) toJob() (Job, bool) {
	if r.ID == "" || r.LocationID == "" {
		log.Printf("[WARN] skip stored job without id or location, id %q", r.ID)
		return Job{}, false
	}
	jobType, err := enums.ParseJobType(r.Type)
	if err != nil {
		log.Printf("[WARN] skip stored job %s: %v", r.ID, err)
		return Job{}, false
	}
	status, err := enums.ParseJobStatus(r.Status)
	if err != nil {
		log.Printf("[WARN] invalid status %q for stored job %s, reset to %s", r.Status, r.ID, enums.JobStatusPlanned)
		status = enums.JobStatusPlanned
	}
	return Job{
		ID:          string(r.ID),
		LocationID:  string(r.LocationID),
		Type:        jobType,
		Title:       strings.TrimSpace(r.Title),
		Description: strings.TrimSpace(r.Description),
		Status:      status,
		CreatedAt:   time.Time(r.CreatedAt),
		UpdatedAt:   time.Time(r.UpdatedAt),
	}, true
}

// sanitize converts stored records into a consistent state: unusable records and
// duplicated ids are dropped, so are jobs referencing missing locations
func sanitize(locRecs []locationRecord, jobRecs []jobRecord) (locs []Location, jobs []Job) {
	locs = make([]Location, 0, len(locRecs))
	seenLocs := make(map[string]bool, len(locRecs))
	for _, r := range locRecs {
		loc, ok := r.toLocation()
		if !ok {
			continue
		}
		if seenLocs[loc.ID] {
			log.Printf("[WARN] skip stored location with duplicated id %s", loc.ID)
			continue
		}
		seenLocs[loc.ID] = true
		locs = append(locs, loc)
	}

	jobs = make([]Job, 0, len(jobRecs))
	seenJobs := make(map[string]bool, len(jobRecs))
	for _, r := range jobRecs {
		job, ok := r.toJob()
		if !ok {
			continue
		}
		if seenJobs[job.ID] {
			log.Printf("[WARN] skip stored job with duplicated id %s", job.ID)
			continue
		}
		if !seenLocs[job.LocationID] {
			log.Printf("[WARN] skip stored job %s, location %s doesn't exist", job.ID, job.LocationID)
			continue
		}
		seenJobs[job.ID] = true
		jobs = append(jobs, job)
	}
	return locs, jobs
}
