// Package google fetches appointments from Google Calendar as an
// import source, so a roster reconciliation can run without an
// exported .ics file.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"calimport/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	credentialsFile = "credentials.json"
)

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service *calendar.Service
	logger  *slog.Logger
}

// NewClient creates a new Google Calendar client for one authenticated
// account. The accountName selects the token file written by the auth
// command (token-<account>.json).
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, accountName string) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	tokenFile := fmt.Sprintf("token-%s.json", accountName)
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", accountName, err)
	}

	client := config.Client(ctx, token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarClient{service: service, logger: logger}, nil
}

// FetchEvents retrieves the events of the given window and maps them
// into the internal event model the import pipeline consumes.
func (c *CalendarClient) FetchEvents(calendarID string, from time.Time, days int) ([]models.CalendarEvent, error) {
	c.logger.Debug("Fetching events", "calendarID", calendarID, "from", from, "days", days)
	tmin := from.UTC().Format(time.RFC3339)
	tmax := from.UTC().Add(time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)

	events, err := c.service.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(tmin).
		TimeMax(tmax).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Info("Fetched events from Google Calendar", "count", len(events.Items), "calendarID", calendarID)
	return c.toCalendarEvents(events.Items), nil
}

// toCalendarEvents converts Google Calendar events to the internal
// model. Timed and all-day events are both kept; an event with no
// usable start at all falls back to the current instant rather than
// being dropped.
func (c *CalendarClient) toCalendarEvents(items []*calendar.Event) []models.CalendarEvent {
	var events []models.CalendarEvent
	for _, item := range items {
		ev := models.CalendarEvent{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Location:    item.Location,
			UID:         item.ICalUID,
		}
		if ev.Summary == "" {
			ev.Summary = "Unbenannter Termin"
		}

		start, timed := eventTime(item.Start)
		if start.IsZero() {
			start = time.Now()
		} else if timed {
			ev.StartTime = &start
		}
		ev.Date = start
		if end, timed := eventTime(item.End); !end.IsZero() && timed {
			ev.EndTime = &end
		}

		for _, a := range item.Attendees {
			ev.Attendees = append(ev.Attendees, flattenAttendee(a))
		}
		if item.Organizer != nil {
			ev.Organizer = item.Organizer.Email
		}

		events = append(events, ev)
	}
	return events
}

// eventTime resolves a Google event boundary, which carries either a
// timed RFC 3339 instant or a bare all-day date. The second return
// reports the timed case.
func eventTime(edt *calendar.EventDateTime) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if edt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", edt.Date, time.Local)
		if err != nil {
			return time.Time{}, false
		}
		return t, false
	}
	return time.Time{}, false
}

// flattenAttendee renders an attendee in the raw string form the
// extractor understands, with the display name as a CN= field.
func flattenAttendee(a *calendar.EventAttendee) string {
	value := a.Email
	if value != "" && !strings.HasPrefix(value, "mailto:") {
		value = "mailto:" + value
	}
	if a.DisplayName != "" {
		return fmt.Sprintf("CN=%s:%s", a.DisplayName, value)
	}
	return value
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the root directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(context.Background(), authCode)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// GetTokenAccounts lists the account names that have a saved token file.
func GetTokenAccounts() ([]string, error) {
	files, err := os.ReadDir(".")
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}
