package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/fieldtrack/app/store"
	"github.com/umputun/fieldtrack/app/store/enums"
)

// APILocationRequest is the JSON body of location create and rename
type APILocationRequest struct {
	Name        string             `json:"name"`
	Address     string             `json:"address,omitempty"`
	Coordinates *store.Coordinates `json:"coordinates,omitempty"`
}

// APILocationUpdateRequest is the JSON body of location update, omitted address is kept
type APILocationUpdateRequest struct {
	Name        string             `json:"name"`
	Address     *string            `json:"address,omitempty"`
	Coordinates *store.Coordinates `json:"coordinates,omitempty"`
}

// APIJobRequest is the JSON body of job create and update
type APIJobRequest struct {
	LocationID  string `json:"locationId,omitempty"`
	Type        string `json:"type"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// APIDeleteLocationResponse is the JSON response of location delete
type APIDeleteLocationResponse struct {
	ID          string `json:"id"`
	RemovedJobs int    `json:"removedJobs"`
}

// handleAPIListLocations returns all locations in insertion order
func (s *Server) handleAPIListLocations(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.ListLocations())
}

// handleAPIListJobs returns jobs, optionally filtered by ?type=
func (s *Server) handleAPIListJobs(w http.ResponseWriter, r *http.Request) {
	var filter enums.JobType
	if v := r.URL.Query().Get("type"); v != "" && v != "all" {
		jt, err := enums.ParseJobType(v)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter = jt
	}
	s.writeJSON(w, http.StatusOK, s.store.ListJobs(filter))
}

// handleAPIMarkers returns map markers built from a consistent snapshot
func (s *Server) handleAPIMarkers(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	s.writeJSON(w, http.StatusOK, BuildMarkers(snap.Locations, snap.Jobs))
}

func (s *Server) handleAPIAddLocation(w http.ResponseWriter, r *http.Request) {
	var req APILocationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	loc, err := s.store.AddLocation(store.NewLocation{Name: req.Name, Address: req.Address, Coordinates: req.Coordinates})
	s.writeStoreResult(w, http.StatusCreated, loc, err)
}

func (s *Server) handleAPIEditLocation(w http.ResponseWriter, r *http.Request) {
	var req APILocationUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Coordinates != nil {
		s.writeJSONError(w, http.StatusBadRequest, "coordinates are immutable")
		return
	}
	loc, err := s.store.EditLocation(r.PathValue("id"), store.LocationUpdate{Name: req.Name, Address: req.Address})
	s.writeStoreResult(w, http.StatusOK, loc, err)
}

func (s *Server) handleAPIDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, err := s.store.DeleteLocation(id)
	s.writeStoreResult(w, http.StatusOK, APIDeleteLocationResponse{ID: id, RemovedJobs: removed}, err)
}

func (s *Server) handleAPIAddJob(w http.ResponseWriter, r *http.Request) {
	var req APIJobRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.store.AddJob(store.NewJob{LocationID: req.LocationID, Type: req.Type,
		Title: req.Title, Description: req.Description})
	s.writeStoreResult(w, http.StatusCreated, job, err)
}

func (s *Server) handleAPIEditJob(w http.ResponseWriter, r *http.Request) {
	var req APIJobRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.store.EditJob(r.PathValue("id"), store.JobUpdate{Title: req.Title,
		Description: req.Description, Type: req.Type})
	s.writeStoreResult(w, http.StatusOK, job, err)
}

func (s *Server) handleAPIAdvanceJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.AdvanceJobStatus(r.PathValue("id"))
	if mutated(err) {
		s.notifyDone(job)
	}
	s.writeStoreResult(w, http.StatusOK, job, err)
}

func (s *Server) handleAPIDeleteJob(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteJob(r.PathValue("id"))
	s.writeStoreResult(w, http.StatusNoContent, nil, err)
}

// writeStoreResult maps store errors to response status. Failed persistence still
// answers with success since the in-memory change is applied.
func (s *Server) writeStoreResult(w http.ResponseWriter, status int, data any, err error) {
	switch {
	case err == nil:
	case store.IsPersistence(err):
		s.setPersistenceWarning(w, err)
	case store.IsValidation(err):
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	case store.IsNotFound(err):
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	default:
		log.Printf("[ERROR] store operation failed: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if data == nil {
		w.WriteHeader(status)
		return
	}
	s.writeJSON(w, status, data)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[WARN] failed to encode JSON error response: %v", err)
	}
}

// decodeJSON decodes request body, unknown fields are rejected
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: unexpected data after JSON object")
	}
	return nil
}
