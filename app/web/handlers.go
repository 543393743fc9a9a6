package web

import (
	"context"
	"net/http"
	"strings"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/fieldtrack/app/store"
	"github.com/umputun/fieldtrack/app/store/enums"
)

// markersChangedEvent is triggered on the client after every mutation, the map reloads markers on it
const markersChangedEvent = "markers-changed"

// handleDashboard renders the main dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, "base.html", "base", s.newTemplateData(r))
}

// handleContent returns lists and forms partial, used by the type filter
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	s.renderContent(w, r, nil, false)
}

// handleAddLocation creates a location from the form
func (s *Server) handleAddLocation(w http.ResponseWriter, r *http.Request) {
	coords, err := store.ParseCoordinates(r.FormValue("lat"), r.FormValue("lng"))
	if err != nil {
		s.renderContent(w, r, err, false)
		return
	}
	loc, err := s.store.AddLocation(store.NewLocation{
		Name:        r.FormValue("name"),
		Address:     r.FormValue("address"),
		Coordinates: coords,
	})
	if mutated(err) {
		log.Printf("[INFO] location %q added at %s", loc.Name, loc.Coordinates)
	}
	s.renderContent(w, r, err, mutated(err))
}

// handleEditLocation renames a location and updates its address if the form has one
func (s *Server) handleEditLocation(w http.ResponseWriter, r *http.Request) {
	upd := store.LocationUpdate{Name: r.FormValue("name")}
	if r.Form.Has("address") {
		addr := r.Form.Get("address")
		upd.Address = &addr
	}
	_, err := s.store.EditLocation(r.PathValue("id"), upd)
	s.renderContent(w, r, err, mutated(err))
}

// handleDeleteLocation removes a location with all its jobs
func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, err := s.store.DeleteLocation(id)
	if mutated(err) {
		log.Printf("[INFO] location %s deleted with %d jobs", id, removed)
	}
	s.renderContent(w, r, err, mutated(err))
}

// handleAddJob creates a planned job from the form
func (s *Server) handleAddJob(w http.ResponseWriter, r *http.Request) {
	_, err := s.store.AddJob(store.NewJob{
		LocationID:  r.FormValue("locationId"),
		Type:        r.FormValue("type"),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	})
	s.renderContent(w, r, err, mutated(err))
}

// handleEditJob updates job texts and type
func (s *Server) handleEditJob(w http.ResponseWriter, r *http.Request) {
	_, err := s.store.EditJob(r.PathValue("id"), store.JobUpdate{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Type:        r.FormValue("type"),
	})
	s.renderContent(w, r, err, mutated(err))
}

// handleAdvanceJob moves job to the next status
func (s *Server) handleAdvanceJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.AdvanceJobStatus(r.PathValue("id"))
	if mutated(err) {
		s.notifyDone(job)
	}
	s.renderContent(w, r, err, mutated(err))
}

// handleDeleteJob removes a single job
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteJob(r.PathValue("id"))
	s.renderContent(w, r, err, mutated(err))
}

// handleThemeToggle toggles the theme
func (s *Server) handleThemeToggle(w http.ResponseWriter, r *http.Request) {
	nextTheme := enums.ThemeDark
	if s.getTheme(r) == enums.ThemeDark {
		nextTheme = enums.ThemeLight
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "theme",
		Value:    nextTheme.String(),
		Path:     s.cookiePath(),
		MaxAge:   365 * 24 * 60 * 60, // 1 year
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// trigger full page refresh for theme change
	w.Header().Set("HX-Refresh", "true")
	w.WriteHeader(http.StatusOK)
}

// renderContent re-renders the content partial. Validation problems are shown in the form area,
// persistence problems as a warning with the change applied, missing entities answer 404.
func (s *Server) renderContent(w http.ResponseWriter, r *http.Request, err error, changed bool) {
	data := s.newTemplateData(r)
	switch {
	case err == nil:
	case store.IsPersistence(err):
		data.Warning = "not saved, the change is kept until restart: " + err.Error()
		s.setPersistenceWarning(w, err)
	case store.IsValidation(err):
		data.Error = err.Error()
	case store.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	default:
		log.Printf("[ERROR] request %s %s failed: %v", r.Method, r.URL.Path, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if changed {
		w.Header().Set("HX-Trigger", markersChangedEvent)
	}
	s.render(w, "partials/content.html", "content", data)
}

// setPersistenceWarning logs failed write and reports it in the response header
func (s *Server) setPersistenceWarning(w http.ResponseWriter, err error) {
	log.Printf("[WARN] %v", err)
	w.Header().Set("X-Persistence-Warning", strings.NewReplacer("\n", " ", "\r", " ").Replace(err.Error()))
}

// notifyDone sends notification about done job in background
func (s *Server) notifyDone(job store.Job) {
	if s.notifier == nil || job.Status != enums.JobStatusDone {
		return
	}
	loc, err := s.store.GetLocation(job.LocationID)
	if err != nil {
		log.Printf("[WARN] can't notify about job %s: %v", job.ID, err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.JobDone(ctx, job, loc); err != nil {
			log.Printf("[WARN] failed to send notification for job %s: %v", job.ID, err)
		}
	}()
}

// mutated reports whether the operation changed the store, possibly without persisting
func mutated(err error) bool {
	return err == nil || store.IsPersistence(err)
}
