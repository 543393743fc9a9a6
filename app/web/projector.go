package web

import (
	"github.com/umputun/fieldtrack/app/store"
	"github.com/umputun/fieldtrack/app/store/enums"
)

// Marker is a map marker of a single location with its jobs listed in the popup
type Marker struct {
	ID      string       `json:"id"` // location id
	Name    string       `json:"name"`
	Address string       `json:"address,omitempty"`
	Lat     float64      `json:"lat"`
	Lng     float64      `json:"lng"`
	Jobs    []MarkerJob  `json:"jobs"`
	Counts  StatusCounts `json:"counts"`
}

// MarkerJob is a job line in the marker popup
type MarkerJob struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Type   enums.JobType   `json:"type"`
	Status enums.JobStatus `json:"status"`
}

// StatusCounts holds number of jobs per status
type StatusCounts struct {
	Planned    int `json:"planned"`
	InProgress int `json:"in-progress"`
	Done       int `json:"done"`
}

// BuildMarkers projects locations and jobs into map markers. Every location with coordinates
// gets exactly one marker, in location order, listing its jobs in insertion order.
// Locations without coordinates are not shown on the map.
func BuildMarkers(locations []store.Location, jobs []store.Job) []Marker {
	res := make([]Marker, 0, len(locations))
	index := make(map[string]int, len(locations)) // location id -> position in res
	for _, l := range locations {
		if l.Coordinates == nil {
			continue
		}
		if _, dup := index[l.ID]; dup {
			continue
		}
		index[l.ID] = len(res)
		res = append(res, Marker{ID: l.ID, Name: l.Name, Address: l.Address,
			Lat: l.Coordinates.Lat, Lng: l.Coordinates.Lng, Jobs: []MarkerJob{}})
	}

	for _, j := range jobs {
		idx, ok := index[j.LocationID]
		if !ok {
			continue
		}
		m := &res[idx]
		title := j.Title
		if title == "" {
			title = j.Description
		}
		m.Jobs = append(m.Jobs, MarkerJob{ID: j.ID, Title: title, Type: j.Type, Status: j.Status})
		switch j.Status {
		case enums.JobStatusPlanned:
			m.Counts.Planned++
		case enums.JobStatusInProgress:
			m.Counts.InProgress++
		case enums.JobStatusDone:
			m.Counts.Done++
		}
	}
	return res
}
