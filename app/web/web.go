// Package web implements the web server for fieldtrack: dashboard with HTMX partials,
// a map fed by marker projection and the JSON API.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/didip/tollbooth/v8"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/fieldtrack/app/store"
	"github.com/umputun/fieldtrack/app/store/enums"
)

//go:embed templates/*.html templates/partials/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Store defines entity operations used by the web server
type Store interface {
	AddLocation(req store.NewLocation) (store.Location, error)
	AddJob(req store.NewJob) (store.Job, error)
	EditLocation(id string, upd store.LocationUpdate) (store.Location, error)
	EditJob(id string, upd store.JobUpdate) (store.Job, error)
	DeleteLocation(id string) (int, error)
	DeleteJob(id string) error
	AdvanceJobStatus(id string) (store.Job, error)
	ListJobs(filter enums.JobType) []store.Job
	ListLocations() []store.Location
	GetLocation(id string) (store.Location, error)
	Snapshot() store.Snapshot
}

// Notifier reports completed jobs
type Notifier interface {
	JobDone(ctx context.Context, job store.Job, loc store.Location) error
}

// Server represents the web server
type Server struct {
	store          Store
	notifier       Notifier
	templates      map[string]*template.Template
	baseURL        string // base URL path for reverse proxy (e.g., /fieldtrack), empty for root
	hostname       string // hostname to display in UI
	version        string
	passwordHash   string                      // bcrypt hash for auth, empty to disable
	csrfProtection *http.CrossOriginProtection // csrf protection for mutating endpoints
	notifyTimeout  time.Duration
}

// Config holds server configuration
type Config struct {
	Store         Store
	Notifier      Notifier      // optional, called when a job becomes done
	NotifyTimeout time.Duration // timeout of a single notification, defaults to 30s
	BaseURL       string        // base URL path for reverse proxy (e.g., /fieldtrack), empty for root
	Hostname      string        // hostname to display in UI
	Version       string
	PasswordHash  string // bcrypt hash for auth (empty to disable)
}

// TemplateData holds data for templates
type TemplateData struct {
	Locations   []store.Location
	Jobs        []JobView
	JobTypes    []enums.JobType
	Filter      enums.JobType // zero value shows all jobs
	Theme       enums.Theme
	BaseURL     string
	Hostname    string
	Version     string
	FullVersion string
	AuthEnabled bool
	CurrentYear int
	Error       string // validation problem of the last form submit
	Warning     string // persistence problem of the last mutation
}

// JobView is a job with the name of its location resolved for display
type JobView struct {
	store.Job
	LocationName string
}

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("web server initialization failed: store is required")
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}

	s := &Server{
		store:          cfg.Store,
		notifier:       cfg.Notifier,
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		hostname:       cfg.Hostname,
		version:        cfg.Version,
		passwordHash:   cfg.PasswordHash,
		csrfProtection: http.NewCrossOriginProtection(),
		notifyTimeout:  cfg.NotifyTimeout,
	}

	templates, err := s.parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: failed to parse HTML templates: %w", err)
	}
	s.templates = templates
	return s, nil
}

// Run starts the web server and blocks until ctx is canceled
func (s *Server) Run(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// handler returns the http.Handler with base URL wrapping applied
func (s *Server) handler() http.Handler {
	routes := s.routes()
	if s.baseURL == "" {
		return routes
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.baseURL, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.baseURL+"/", http.StatusMovedPermanently)
	})
	mux.Handle(s.baseURL+"/", http.StripPrefix(s.baseURL, routes))
	return mux
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("fieldtrack", "umputun", s.version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(64*1024), // 64KB max request size
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	// auth middleware must be set before any routes are defined
	if s.passwordHash != "" {
		log.Printf("[INFO] authentication enabled for web UI")
		router.Use(s.authMiddleware)
		router.HandleFunc("GET /login", s.handleLoginForm)
		router.With(s.csrfProtection.Handler, tollbooth.HTTPMiddleware(loginLimiter)).HandleFunc("POST /login", s.handleLogin)
		router.HandleFunc("GET /logout", s.handleLogout)
	}

	router.HandleFunc("GET /{$}", s.handleDashboard)

	// HTMX endpoints, all mutations answer with the re-rendered content partial
	router.Mount("/api").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.Use(s.csrfProtection.Handler)

		api.HandleFunc("GET /content", s.handleContent)
		api.HandleFunc("POST /theme", s.handleThemeToggle)
		api.HandleFunc("POST /locations", s.handleAddLocation)
		api.HandleFunc("POST /locations/{id}", s.handleEditLocation)
		api.HandleFunc("DELETE /locations/{id}", s.handleDeleteLocation)
		api.HandleFunc("POST /jobs", s.handleAddJob)
		api.HandleFunc("POST /jobs/{id}", s.handleEditJob)
		api.HandleFunc("POST /jobs/{id}/advance", s.handleAdvanceJob)
		api.HandleFunc("DELETE /jobs/{id}", s.handleDeleteJob)
	})

	// JSON API for scripts and the map
	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.Use(s.csrfProtection.Handler)

		api.HandleFunc("GET /locations", s.handleAPIListLocations)
		api.HandleFunc("POST /locations", s.handleAPIAddLocation)
		api.HandleFunc("PUT /locations/{id}", s.handleAPIEditLocation)
		api.HandleFunc("DELETE /locations/{id}", s.handleAPIDeleteLocation)
		api.HandleFunc("GET /jobs", s.handleAPIListJobs)
		api.HandleFunc("POST /jobs", s.handleAPIAddJob)
		api.HandleFunc("PUT /jobs/{id}", s.handleAPIEditJob)
		api.HandleFunc("POST /jobs/{id}/advance", s.handleAPIAdvanceJob)
		api.HandleFunc("DELETE /jobs/{id}", s.handleAPIDeleteJob)
		api.HandleFunc("GET /markers", s.handleAPIMarkers)
	})

	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("[ERROR] failed to create static file system: %v", err)
		router.Handle("GET /static/", http.FileServer(http.FS(staticFS)))
	} else {
		router.HandleFiles("/static/", http.FS(fsys))
	}

	return router
}

// newTemplateData creates a TemplateData with lists and common fields populated from request
func (s *Server) newTemplateData(r *http.Request) TemplateData {
	filter := s.getFilter(r)
	snap := s.store.Snapshot()
	return TemplateData{
		Locations:   snap.Locations,
		Jobs:        jobViews(snap, filter),
		JobTypes:    enums.JobTypeValues,
		Filter:      filter,
		Theme:       s.getTheme(r),
		BaseURL:     s.baseURL,
		Hostname:    s.hostname,
		Version:     shortVersion(s.version),
		FullVersion: s.version,
		AuthEnabled: s.passwordHash != "",
		CurrentYear: time.Now().Year(),
	}
}

// render renders a template
func (s *Server) render(w http.ResponseWriter, page, tmplName string, data any) {
	tmpl, ok := s.templates[page]
	if !ok {
		log.Printf("[WARN] template %s not found", page)
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, tmplName, data); err != nil {
		log.Printf("[WARN] failed to execute template: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// parseTemplates parses all templates
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)

	funcMap := template.FuncMap{
		"humanTime": s.humanTime,
		"url":       s.url,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templatesFS,
		"templates/base.html", "templates/dashboard.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}
	templates["base.html"] = base

	// partials parsed separately for HTMX requests
	partials, err := template.New("content.html").Funcs(funcMap).ParseFS(templatesFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}
	templates["partials/content.html"] = partials

	login, err := template.New("login.html").Funcs(funcMap).ParseFS(templatesFS, "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse login template: %w", err)
	}
	templates["login"] = login

	return templates, nil
}

// getFilter gets job type filter from request, zero value means all types
func (s *Server) getFilter(r *http.Request) enums.JobType {
	v := r.FormValue("filter")
	if v == "" || v == "all" {
		return enums.JobType{}
	}
	res, err := enums.ParseJobType(v)
	if err != nil {
		log.Printf("[WARN] invalid job type filter %q: %v", v, err)
		return enums.JobType{}
	}
	return res
}

func (s *Server) getTheme(r *http.Request) enums.Theme {
	cookie, err := r.Cookie("theme")
	if err != nil {
		return enums.ThemeLight
	}
	theme, err := enums.ParseTheme(cookie.Value)
	if err != nil {
		log.Printf("[WARN] invalid theme %q: %v", cookie.Value, err)
		return enums.ThemeLight
	}
	return theme
}

// jobViews resolves location names for jobs matching the filter
func jobViews(snap store.Snapshot, filter enums.JobType) []JobView {
	names := make(map[string]string, len(snap.Locations))
	for _, l := range snap.Locations {
		names[l.ID] = l.Name
	}
	res := make([]JobView, 0, len(snap.Jobs))
	for _, j := range snap.Jobs {
		if filter.IsValid() && j.Type != filter {
			continue
		}
		name, ok := names[j.LocationID]
		if !ok {
			name = "?"
		}
		res = append(res, JobView{Job: j, LocationName: name})
	}
	return res
}

// template helper functions

func (s *Server) humanTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 2, 15:04")
}

// url prepends the base URL to a path for reverse proxy support
func (s *Server) url(path string) string {
	return s.baseURL + path
}

// cookiePath returns the cookie path with base URL support
func (s *Server) cookiePath() string {
	if s.baseURL == "" {
		return "/"
	}
	return s.baseURL + "/"
}

// shortVersion extracts a short version string from full version,
// "v1.7.0-abc1234-20241225" becomes "v1.7.0"
func shortVersion(fullVer string) string {
	if fullVer == "" || fullVer == "unknown" {
		return fullVer
	}
	if idx := strings.Index(fullVer, "-"); idx > 0 {
		return fullVer[:idx]
	}
	return fullVer
}
