// Package store keeps locations and jobs in memory, enforces referential integrity
// between them and writes both collections back to persistence after every mutation.
package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/fieldtrack/app/persistence"
	"github.com/umputun/fieldtrack/app/store/enums"
)

// persistence keys of both collections
const (
	LocationsKey = "locations"
	JobsKey      = "jobs"
)

// Store owns locations and jobs. Every operation runs under a single lock, updates
// memory and persists before returning, so callers never see partial mutations.
type Store struct {
	mu        sync.Mutex
	adapter   *persistence.Adapter
	ids       IDGenerator
	now       func() time.Time
	locations []Location
	jobs      []Job
}

// Option customizes Store
type Option func(s *Store)

// WithIDGenerator sets identifier generator, UUIDGenerator is the default
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithClock sets time source for created/updated timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New makes Store and loads both collections from adapter.
// Missing or corrupted collections start empty.
func New(adapter *persistence.Adapter, opts ...Option) *Store {
	res := &Store{adapter: adapter, ids: UUIDGenerator{}, now: time.Now}
	for _, opt := range opts {
		opt(res)
	}

	locRecs := persistence.Load[locationRecord](adapter, LocationsKey)
	jobRecs := persistence.Load[jobRecord](adapter, JobsKey)
	res.locations, res.jobs = sanitize(locRecs, jobRecs)
	log.Printf("[INFO] loaded %d locations and %d jobs", len(res.locations), len(res.jobs))
	return res
}

// AddLocation creates a new location with a fresh id
func (s *Store) AddLocation(req NewLocation) (Location, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Location{}, &ValidationError{Field: "name", Reason: "required"}
	}
	if req.Coordinates == nil {
		return Location{}, &ValidationError{Field: "coordinates", Reason: "required"}
	}
	if err := req.Coordinates.Validate(); err != nil {
		return Location{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.newID(func(id string) bool { return s.locationIndex(id) >= 0 })
	if err != nil {
		return Location{}, err
	}
	coords := *req.Coordinates
	loc := Location{
		ID:          id,
		Name:        name,
		Address:     strings.TrimSpace(req.Address),
		Coordinates: &coords,
		CreatedAt:   s.now(),
	}
	s.locations = append(s.locations, loc)
	log.Printf("[DEBUG] added location %s %q", loc.ID, loc.Name)
	return cloneLocation(loc), s.persist(LocationsKey)
}

// AddJob creates a new planned job for an existing location
func (s *Store) AddJob(req NewJob) (Job, error) {
	jobType, err := parseType(req.Type)
	if err != nil {
		return Job{}, err
	}
	title, descr := strings.TrimSpace(req.Title), strings.TrimSpace(req.Description)
	if title == "" && descr == "" {
		return Job{}, &ValidationError{Field: "title", Reason: "title or description required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locationIndex(req.LocationID) < 0 {
		return Job{}, &ValidationError{Field: "locationId", Reason: fmt.Sprintf("location %q doesn't exist", req.LocationID)}
	}
	id, err := s.newID(func(id string) bool { return s.jobIndex(id) >= 0 })
	if err != nil {
		return Job{}, err
	}
	job := Job{
		ID:          id,
		LocationID:  req.LocationID,
		Type:        jobType,
		Title:       title,
		Description: descr,
		Status:      enums.JobStatusPlanned,
		CreatedAt:   s.now(),
	}
	s.jobs = append(s.jobs, job)
	log.Printf("[DEBUG] added job %s (%s) to location %s", job.ID, job.Type, job.LocationID)
	return job, s.persist(JobsKey)
}

// EditLocation renames location and optionally changes its address, coordinates are immutable
func (s *Store) EditLocation(id string, upd LocationUpdate) (Location, error) {
	name := strings.TrimSpace(upd.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.locationIndex(id)
	if idx < 0 {
		return Location{}, &NotFoundError{Kind: "location", ID: id}
	}
	if name == "" {
		return Location{}, &ValidationError{Field: "name", Reason: "required"}
	}
	s.locations[idx].Name = name
	if upd.Address != nil {
		s.locations[idx].Address = strings.TrimSpace(*upd.Address)
	}
	return cloneLocation(s.locations[idx]), s.persist(LocationsKey)
}

// EditJob updates job texts and type in place
func (s *Store) EditJob(id string, upd JobUpdate) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.jobIndex(id)
	if idx < 0 {
		return Job{}, &NotFoundError{Kind: "job", ID: id}
	}
	jobType, err := parseType(upd.Type)
	if err != nil {
		return Job{}, err
	}
	title, descr := strings.TrimSpace(upd.Title), strings.TrimSpace(upd.Description)
	if title == "" && descr == "" {
		return Job{}, &ValidationError{Field: "title", Reason: "title or description required"}
	}

	job := &s.jobs[idx]
	job.Title, job.Description, job.Type = title, descr, jobType
	job.UpdatedAt = s.now()
	return *job, s.persist(JobsKey)
}

// DeleteLocation removes location and all jobs referencing it.
// Returns number of removed jobs.
func (s *Store) DeleteLocation(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.locationIndex(id)
	if idx < 0 {
		return 0, &NotFoundError{Kind: "location", ID: id}
	}

	// build both collections first, then swap them together
	locations := make([]Location, 0, len(s.locations)-1)
	locations = append(locations, s.locations[:idx]...)
	locations = append(locations, s.locations[idx+1:]...)
	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.LocationID != id {
			jobs = append(jobs, j)
		}
	}
	removed := len(s.jobs) - len(jobs)
	s.locations, s.jobs = locations, jobs

	log.Printf("[DEBUG] deleted location %s with %d jobs", id, removed)
	return removed, s.persist(LocationsKey, JobsKey)
}

// DeleteJob removes a single job
func (s *Store) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.jobIndex(id)
	if idx < 0 {
		return &NotFoundError{Kind: "job", ID: id}
	}
	jobs := make([]Job, 0, len(s.jobs)-1)
	jobs = append(jobs, s.jobs[:idx]...)
	s.jobs = append(jobs, s.jobs[idx+1:]...)
	return s.persist(JobsKey)
}

// AdvanceJobStatus moves job to the next status in the cycle planned -> in-progress -> done -> planned
func (s *Store) AdvanceJobStatus(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.jobIndex(id)
	if idx < 0 {
		return Job{}, &NotFoundError{Kind: "job", ID: id}
	}
	job := &s.jobs[idx]
	prev := job.Status
	job.Status = job.Status.Next()
	job.UpdatedAt = s.now()
	log.Printf("[DEBUG] job %s status %s -> %s", job.ID, prev, job.Status)
	return *job, s.persist(JobsKey)
}

// ListJobs returns jobs of the given type in insertion order. Zero filter returns all jobs.
func (s *Store) ListJobs(filter enums.JobType) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterJobs(s.jobs, func(j Job) bool { return !filter.IsValid() || j.Type == filter })
}

// ListLocations returns all locations in insertion order
func (s *Store) ListLocations() []Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLocations(s.locations)
}

// LocationJobs returns jobs of a location in insertion order
func (s *Store) LocationJobs(locationID string) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterJobs(s.jobs, func(j Job) bool { return j.LocationID == locationID })
}

// GetLocation returns location by id
func (s *Store) GetLocation(id string) (Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.locationIndex(id)
	if idx < 0 {
		return Location{}, &NotFoundError{Kind: "location", ID: id}
	}
	return cloneLocation(s.locations[idx]), nil
}

// GetJob returns job by id
func (s *Store) GetJob(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.jobIndex(id)
	if idx < 0 {
		return Job{}, &NotFoundError{Kind: "job", ID: id}
	}
	return s.jobs[idx], nil
}

// Snapshot returns copies of both collections taken at the same moment
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Locations: cloneLocations(s.locations),
		Jobs:      filterJobs(s.jobs, func(Job) bool { return true }),
	}
}

// Flush writes both collections to persistence
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(LocationsKey, JobsKey)
}

// Close flushes the store and closes persistence
func (s *Store) Close() error {
	flushErr := s.Flush()
	if err := s.adapter.Close(); err != nil {
		if flushErr != nil {
			return fmt.Errorf("failed to close persistence: %w (also failed to flush: %v)", err, flushErr)
		}
		return fmt.Errorf("failed to close persistence: %w", err)
	}
	return flushErr
}

// persist saves given collections, all of them are attempted.
// Returns PersistenceError for the first failed key. Must be called under lock.
func (s *Store) persist(keys ...string) error {
	var res error
	for _, key := range keys {
		var err error
		switch key {
		case LocationsKey:
			err = persistence.Save(s.adapter, key, s.locations)
		case JobsKey:
			err = persistence.Save(s.adapter, key, s.jobs)
		default:
			err = fmt.Errorf("unknown collection %q", key)
		}
		if err != nil {
			log.Printf("[WARN] %s not persisted, in-memory state kept: %v", key, err)
			if res == nil {
				res = &PersistenceError{Key: key, Err: err}
			}
		}
	}
	return res
}

// newID makes an id not used by the collection. Must be called under lock.
func (s *Store) newID(exists func(id string) bool) (string, error) {
	const attempts = 10
	for range attempts {
		id := s.ids.NewID()
		if id != "" && !exists(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique id in %d attempts", attempts)
}

func (s *Store) locationIndex(id string) int {
	for i := range s.locations {
		if s.locations[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) jobIndex(id string) int {
	for i := range s.jobs {
		if s.jobs[i].ID == id {
			return i
		}
	}
	return -1
}

func parseType(v string) (enums.JobType, error) {
	if strings.TrimSpace(v) == "" {
		return enums.JobType{}, &ValidationError{Field: "type", Reason: "required"}
	}
	res, err := enums.ParseJobType(v)
	if err != nil {
		return enums.JobType{}, &ValidationError{Field: "type", Reason: err.Error()}
	}
	return res, nil
}

func filterJobs(jobs []Job, keep func(Job) bool) []Job {
	res := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if keep(j) {
			res = append(res, j)
		}
	}
	return res
}

// cloneLocation copies location including coordinates pointer target
func cloneLocation(l Location) Location {
	if l.Coordinates != nil {
		c := *l.Coordinates
		l.Coordinates = &c
	}
	return l
}

func cloneLocations(locs []Location) []Location {
	res := make([]Location, 0, len(locs))
	for _, l := range locs {
		res = append(res, cloneLocation(l))
	}
	return res
}
