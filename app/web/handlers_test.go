package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/fieldtrack/app/persistence"
	"github.com/umputun/fieldtrack/app/store"
	"github.com/umputun/fieldtrack/app/store/enums"
)

func TestServer_HTMXLocationFlow(t *testing.T) {
	srv, st := newTestServer(t, Config{})
	h := srv.routes()

	t.Run("add location", func(t *testing.T) {
		rec := postForm(t, h, "/api/locations", url.Values{"name": {"Depot A"}, "address": {"Main st 1"},
			"lat": {"50,08"}, "lng": {"14.42"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, markersChangedEvent, rec.Header().Get("HX-Trigger"))
		assert.Contains(t, rec.Body.String(), "Depot A")
		locs := st.ListLocations()
		require.Len(t, locs, 1)
		assert.InDelta(t, 50.08, locs[0].Coordinates.Lat, 1e-9)
	})

	t.Run("add location without coordinates", func(t *testing.T) {
		rec := postForm(t, h, "/api/locations", url.Values{"name": {"Nowhere"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("HX-Trigger"))
		assert.Contains(t, rec.Body.String(), "invalid coordinates: required")
		assert.Len(t, st.ListLocations(), 1)
	})

	t.Run("add location without name", func(t *testing.T) {
		rec := postForm(t, h, "/api/locations", url.Values{"lat": {"1"}, "lng": {"2"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid name: required")
		assert.Len(t, st.ListLocations(), 1)
	})

	t.Run("rename location", func(t *testing.T) {
		rec := postForm(t, h, "/api/locations/id-1", url.Values{"name": {"Depot B"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Depot B")
		loc, err := st.GetLocation("id-1")
		require.NoError(t, err)
		assert.Equal(t, "Depot B", loc.Name)
		assert.Equal(t, "Main st 1", loc.Address, "address kept when not in form")
	})

	t.Run("change location address", func(t *testing.T) {
		rec := postForm(t, h, "/api/locations/id-1", url.Values{"name": {"Depot B"}, "address": {"Side st 7"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, markersChangedEvent, rec.Header().Get("HX-Trigger"))
		assert.Contains(t, rec.Body.String(), "Side st 7")
		loc, err := st.GetLocation("id-1")
		require.NoError(t, err)
		assert.Equal(t, "Side st 7", loc.Address)
		assert.InDelta(t, 50.08, loc.Coordinates.Lat, 1e-9)
	})

	t.Run("rename missing location", func(t *testing.T) {
		rec := postForm(t, h, "/api/locations/nope", url.Values{"name": {"X"}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete location cascades", func(t *testing.T) {
		_, err := st.AddJob(store.NewJob{LocationID: "id-1", Type: "gas", Title: "meter"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodDelete, "/api/locations/id-1", http.NoBody)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, markersChangedEvent, rec.Header().Get("HX-Trigger"))
		assert.Empty(t, st.ListLocations())
		assert.Empty(t, st.ListJobs(enums.JobType{}))
		assert.Contains(t, rec.Body.String(), "No locations yet.")
	})
}

func TestServer_HTMXJobFlow(t *testing.T) {
	srv, st := newTestServer(t, Config{})
	h := srv.routes()
	loc, err := st.AddLocation(store.NewLocation{Name: "Depot A", Coordinates: &store.Coordinates{Lat: 50, Lng: 14}})
	require.NoError(t, err)

	rec := postForm(t, h, "/api/jobs", url.Values{"locationId": {loc.ID}, "type": {"heating"}, "title": {"Boiler check"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, markersChangedEvent, rec.Header().Get("HX-Trigger"))
	jobs := st.ListJobs(enums.JobType{})
	require.Len(t, jobs, 1)
	jobID := jobs[0].ID

	t.Run("invalid type rejected", func(t *testing.T) {
		rec := postForm(t, h, "/api/jobs", url.Values{"locationId": {loc.ID}, "type": {"electric"}, "title": {"x"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid type")
		assert.Len(t, st.ListJobs(enums.JobType{}), 1)
	})

	t.Run("edit job", func(t *testing.T) {
		rec := postForm(t, h, "/api/jobs/"+jobID, url.Values{"type": {"water"}, "title": {"Pipe"}, "description": {"leak"}})
		require.Equal(t, http.StatusOK, rec.Code)
		job, err := st.GetJob(jobID)
		require.NoError(t, err)
		assert.Equal(t, enums.JobTypeWater, job.Type)
		assert.Equal(t, "Pipe", job.Title)
		assert.Equal(t, "leak", job.Description)
	})

	t.Run("advance job", func(t *testing.T) {
		rec := postForm(t, h, "/api/jobs/"+jobID+"/advance", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `class="job status-in-progress"`)
	})

	t.Run("filter keeps type", func(t *testing.T) {
		rec := postForm(t, h, "/api/jobs", url.Values{"locationId": {loc.ID}, "type": {"gas"}, "title": {"Meter"},
			"filter": {"gas"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Meter")
		assert.NotContains(t, rec.Body.String(), "Pipe")

		req := httptest.NewRequest(http.MethodGet, "/api/content?filter=water", http.NoBody)
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Pipe")
		assert.NotContains(t, rec.Body.String(), "Meter")
		assert.Contains(t, rec.Body.String(), `<option value="water" selected>`)
	})

	t.Run("delete job", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/jobs/"+jobID, http.NoBody)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		_, err := st.GetJob(jobID)
		assert.True(t, store.IsNotFound(err))
	})

	t.Run("delete missing job", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/jobs/"+jobID, http.NoBody)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_HTMXPersistenceWarning(t *testing.T) {
	backend := &switchableBackend{Backend: persistence.NewMemoryBackend()}
	srv, st := newTestServerWithBackend(t, backend, Config{})
	h := srv.routes()

	backend.setFail(true)
	rec := postForm(t, h, "/api/locations", url.Values{"name": {"Depot A"}, "lat": {"50"}, "lng": {"14"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("X-Persistence-Warning"), "failed to persist locations")
	assert.Equal(t, markersChangedEvent, rec.Header().Get("HX-Trigger"))
	assert.Contains(t, rec.Body.String(), "not saved")
	assert.Len(t, st.ListLocations(), 1, "in-memory change kept")
}

func TestServer_ThemeToggle(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	h := srv.routes()

	rec := postForm(t, h, "/api/theme", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("HX-Refresh"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "theme", cookies[0].Name)
	assert.Equal(t, "dark", cookies[0].Value)

	req := httptest.NewRequest(http.MethodPost, "/api/theme", http.NoBody)
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "light", cookies[0].Value)
}

func TestServer_CrossOriginRejected(t *testing.T) {
	srv, st := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/locations", http.NoBody)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, st.ListLocations())
}

func TestServer_NotifyDone(t *testing.T) {
	notifier := &fakeNotifier{}
	srv, st := newTestServer(t, Config{Notifier: notifier, NotifyTimeout: time.Second})
	h := srv.routes()

	loc, err := st.AddLocation(store.NewLocation{Name: "Depot A", Coordinates: &store.Coordinates{Lat: 50, Lng: 14}})
	require.NoError(t, err)
	job, err := st.AddJob(store.NewJob{LocationID: loc.ID, Type: "gas", Title: "Meter"})
	require.NoError(t, err)

	postForm(t, h, "/api/jobs/"+job.ID+"/advance", nil) // in-progress
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, notifier.done(), "only done jobs are reported")

	postForm(t, h, "/api/jobs/"+job.ID+"/advance", nil) // done
	require.Eventually(t, func() bool { return len(notifier.done()) == 1 }, time.Second, 5*time.Millisecond)
	got := notifier.done()[0]
	assert.Equal(t, job.ID, got.job.ID)
	assert.Equal(t, enums.JobStatusDone, got.job.Status)
	assert.Equal(t, "Depot A", got.loc.Name)

	notifier.setErr(errors.New("webhook down"))
	postForm(t, h, "/api/jobs/"+job.ID+"/advance", nil) // planned, nothing sent
	postForm(t, h, "/api/jobs/"+job.ID+"/advance", nil) // in-progress
	rec := postForm(t, h, "/api/jobs/"+job.ID+"/advance", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "notification failure doesn't affect response")
	require.Eventually(t, func() bool { return len(notifier.done()) == 2 }, time.Second, 5*time.Millisecond)
}

type notification struct {
	job store.Job
	loc store.Location
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notification
	err   error
}

func (f *fakeNotifier) JobDone(_ context.Context, job store.Job, loc store.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notification{job: job, loc: loc})
	return f.err
}

func (f *fakeNotifier) done() []notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification(nil), f.calls...)
}

func (f *fakeNotifier) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

var errBackendDown = errors.New("backend down")

// switchableBackend fails writes on demand
type switchableBackend struct {
	persistence.Backend
	mu   sync.Mutex
	fail bool
}

func (b *switchableBackend) setFail(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = v
}

func (b *switchableBackend) Set(key, value string) error {
	b.mu.Lock()
	fail := b.fail
	b.mu.Unlock()
	if fail {
		return errBackendDown
	}
	return b.Backend.Set(key, value)
}
