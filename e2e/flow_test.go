//go:build e2e

package e2e

import (
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addLocation fills and submits the add location form
func addLocation(t *testing.T, page playwright.Page, name, lat, lng string) {
	t.Helper()
	form := page.Locator("#add-location")
	require.NoError(t, form.Locator("input[name='name']").Fill(name))
	require.NoError(t, form.Locator("input[name='lat']").Fill(lat))
	require.NoError(t, form.Locator("input[name='lng']").Fill(lng))
	require.NoError(t, form.Locator("button[type='submit']").Click())
	waitVisible(t, page.Locator("#locations li", playwright.PageLocatorOptions{HasText: name}))
}

// addJob fills and submits the add job form
func addJob(t *testing.T, page playwright.Page, locationName, jobType, title string) {
	t.Helper()
	form := page.Locator("#add-job")
	_, err := form.Locator("select[name='locationId']").SelectOption(playwright.SelectOptionValues{
		Labels: &[]string{locationName}})
	require.NoError(t, err)
	_, err = form.Locator("select[name='type']").SelectOption(playwright.SelectOptionValues{Values: &[]string{jobType}})
	require.NoError(t, err)
	require.NoError(t, form.Locator("input[name='title']").Fill(title))
	require.NoError(t, form.Locator("button[type='submit']").Click())
	waitVisible(t, page.Locator("#jobs li", playwright.PageLocatorOptions{HasText: title}))
}

func TestFlow_LocationWithJobs(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)
	waitVisible(t, page.Locator(".leaflet-marker-icon").First())
	markersBefore := markerCount(t, page)

	name := uniqueName("Pump station")
	title := uniqueName("Valve check")
	addLocation(t, page, name, "49,5", "15.1")
	require.Eventually(t, func() bool { return markerCount(t, page) == markersBefore+1 },
		5*time.Second, 100*time.Millisecond, "map rebuilt with new marker")

	addJob(t, page, name, "gas", title)
	job := page.Locator("#jobs li", playwright.PageLocatorOptions{HasText: title})
	cls, err := job.GetAttribute("class")
	require.NoError(t, err)
	assert.Contains(t, cls, "status-planned")
	text, err := job.Locator(".location-name").TextContent()
	require.NoError(t, err)
	assert.Equal(t, name, text)

	// planned -> in-progress -> done -> planned
	for _, want := range []string{"status-in-progress", "status-done", "status-planned"} {
		require.NoError(t, page.Locator("#jobs li", playwright.PageLocatorOptions{HasText: title}).
			Locator("button", playwright.LocatorLocatorOptions{HasText: "Next status"}).Click())
		waitVisible(t, page.Locator("#jobs li."+want, playwright.PageLocatorOptions{HasText: title}))
	}

	// cascade delete removes the job and the marker
	require.NoError(t, page.Locator("#locations li", playwright.PageLocatorOptions{HasText: name}).
		Locator("button.danger").Click())
	waitHidden(t, page.Locator("#locations li", playwright.PageLocatorOptions{HasText: name}))
	waitHidden(t, page.Locator("#jobs li", playwright.PageLocatorOptions{HasText: title}))
	require.Eventually(t, func() bool { return markerCount(t, page) == markersBefore },
		5*time.Second, 100*time.Millisecond, "marker removed")
}

func TestFlow_ValidationError(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	form := page.Locator("#add-location")
	require.NoError(t, form.Locator("input[name='name']").Fill(uniqueName("Nowhere")))
	require.NoError(t, form.Locator("input[name='lat']").Fill("200"))
	require.NoError(t, form.Locator("input[name='lng']").Fill("10"))
	require.NoError(t, form.Locator("button[type='submit']").Click())

	waitVisible(t, page.Locator(".flash.error"))
	text, err := page.Locator(".flash.error").TextContent()
	require.NoError(t, err)
	assert.Contains(t, text, "latitude")
}

func TestFlow_EditAndFilter(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	name := uniqueName("Boiler room")
	title := uniqueName("Radiator")
	addLocation(t, page, name, "50.1", "14.5")
	addJob(t, page, name, "heating", title)

	// retype the job to water
	job := page.Locator("#jobs li", playwright.PageLocatorOptions{HasText: title})
	require.NoError(t, job.Locator("summary").Click())
	_, err := job.Locator("select[name='type']").SelectOption(playwright.SelectOptionValues{Values: &[]string{"water"}})
	require.NoError(t, err)
	require.NoError(t, job.Locator("form button[type='submit']").Click())
	waitVisible(t, page.Locator("#jobs li .type-water", playwright.PageLocatorOptions{HasText: "water"}).First())

	// filter by gas hides it, filter by water shows it
	_, err = page.Locator("#filter").SelectOption(playwright.SelectOptionValues{Values: &[]string{"gas"}})
	require.NoError(t, err)
	waitHidden(t, page.Locator("#jobs li", playwright.PageLocatorOptions{HasText: title}))

	_, err = page.Locator("#filter").SelectOption(playwright.SelectOptionValues{Values: &[]string{"water"}})
	require.NoError(t, err)
	waitVisible(t, page.Locator("#jobs li", playwright.PageLocatorOptions{HasText: title}))

	// rename location, job list follows
	loc := page.Locator("#locations li", playwright.PageLocatorOptions{HasText: name})
	require.NoError(t, loc.Locator("summary").Click())
	renamed := name + " renamed"
	require.NoError(t, loc.Locator("input[name='name']").Fill(renamed))
	require.NoError(t, loc.Locator("form button[type='submit']").Click())
	waitVisible(t, page.Locator("#jobs li .location-name", playwright.PageLocatorOptions{HasText: renamed}))
}
