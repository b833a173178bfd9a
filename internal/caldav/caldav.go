// Package caldav fetches appointments from a CalDAV calendar (Apple
// iCloud by default) as an import source.
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"calimport/internal/ics"
	"calimport/internal/models"

	"github.com/emersion/go-webdav/caldav"
)

const defaultEndpoint = "https://caldav.icloud.com/"

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "calimport/1.0")
	return t.Transport.RoundTrip(req)
}

// Client reads events from one named calendar on a CalDAV server.
type Client struct {
	caldavClient *caldav.Client
	logger       *slog.Logger
	calendarPath string
}

// NewClient connects to the CalDAV endpoint and resolves the calendar
// with the given display name. An empty endpoint targets iCloud.
func NewClient(logger *slog.Logger, endpoint, username, password, calendarName string) (*Client, error) {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	c := &Client{caldavClient: caldavClient, logger: logger}

	logger.Info("Finding calendar", "calendarName", calendarName)
	calendarPath, err := c.findCalendar(context.Background(), calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	c.calendarPath = calendarPath
	logger.Info("Successfully found calendar", "path", calendarPath)

	return c, nil
}

// FetchEvents queries the calendar for the given time window and
// converts every VEVENT into the internal event model.
func (c *Client) FetchEvents(ctx context.Context, from time.Time, days int) ([]models.CalendarEvent, error) {
	until := from.AddDate(0, 0, days)
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: "VCALENDAR",
			Comps: []caldav.CalendarCompRequest{{
				Name:     "VEVENT",
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: from,
				End:   until,
			}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("calendar query failed: %w", err)
	}

	var events []models.CalendarEvent
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, ve := range obj.Data.Events() {
			events = append(events, ics.FromComponent(ve))
		}
	}

	c.logger.Info("Fetched events from CalDAV calendar", "count", len(events), "from", from, "until", until)
	return events, nil
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
