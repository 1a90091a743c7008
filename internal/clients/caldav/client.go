package caldav

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emersion/go-webdav/caldav"

	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/domain"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/ics"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/metrics"
)

const (
	// Connection test, PUT and DELETE are short requests.
	shortTimeout = 10 * time.Second
	// REPORT queries return full event bodies and get a bit longer.
	reportTimeout = 15 * time.Second
)

const propfindBody = `<?xml version="1.0" encoding="utf-8" ?><D:propfind xmlns:D="DAV:"><D:prop><D:displayname/></D:prop></D:propfind>`

// Client talks to a single remote CalDAV collection with basic auth.
// All failures on the query path degrade to "no events known" so a
// slot lookup is never blocked by the remote calendar.
type Client struct {
	baseURL  string
	username string
	password string
	loc      *time.Location

	client *caldav.Client
}

// NewClient creates a CalDAV client for the given collection URL.
// Remote event instants are converted into loc before being returned.
func NewClient(baseURL, username, password string, loc *time.Location) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		loc:      loc,
	}
}

// IsConfigured returns true if the client has an endpoint and credentials.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.username != "" && c.password != ""
}

// basicAuthTransport adds Basic Auth to HTTP requests.
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

func (c *Client) httpClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &basicAuthTransport{username: c.username, password: c.password},
		Timeout:   timeout,
	}
}

// connect lazily builds the underlying WebDAV client.
func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	client, err := caldav.NewClient(c.httpClient(reportTimeout), c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// collectionPath is the request path of the configured collection.
func (c *Client) collectionPath() string {
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

func (c *Client) eventPath(uid string) string {
	return strings.TrimSuffix(c.collectionPath(), "/") + "/" + uid + ".ics"
}

// TestConnection issues a depth-0 PROPFIND against the collection.
// 200, 207 and 404 all count as success (404 means the endpoint
// resolves but holds nothing yet); 401/403 surface as an explicit
// auth failure, anything else as a StatusError with the code.
func (c *Client) TestConnection(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, shortTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "PROPFIND", c.baseURL, strings.NewReader(propfindBody))
	if err != nil {
		return fmt.Errorf("build PROPFIND request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", "0")

	resp, err := c.httpClient(shortTimeout).Do(req)
	if err != nil {
		metrics.CalDAVRequest("propfind", false)
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusMultiStatus, http.StatusNotFound:
		metrics.CalDAVRequest("propfind", true)
		return nil
	default:
		metrics.CalDAVRequest("propfind", false)
		return &StatusError{Code: resp.StatusCode}
	}
}

// FetchEvents returns the remote events for a calendar date
// ("2006-01-02") via a time-ranged REPORT. Any transport, status or
// parse problem degrades to an empty list: missing CalDAV data means
// "no known conflicts", never "everything blocked".
func (c *Client) FetchEvents(ctx context.Context, date string) []ics.Event {
	if !c.IsConfigured() {
		return nil
	}

	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		log.Printf("caldav: invalid date %q: %v", date, err)
		return nil
	}

	client, err := c.connect()
	if err != nil {
		log.Printf("caldav: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: day,
					End:   day.Add(24*time.Hour - time.Second),
				},
			},
		},
	}

	objects, err := client.QueryCalendar(ctx, c.collectionPath(), query)
	if err != nil {
		metrics.CalDAVRequest("report", false)
		log.Printf("caldav: query calendar: %v", err)
		return nil
	}
	metrics.CalDAVRequest("report", true)

	var events []ics.Event
	skipped := 0
	for _, obj := range objects {
		if obj.Data == nil {
			skipped++
			continue
		}
		evs, sk := ics.EventsFromCalendar(obj.Data, c.loc)
		events = append(events, evs...)
		skipped += sk
	}
	if skipped > 0 {
		log.Printf("caldav: skipped %d malformed objects for %s", skipped, date)
	}
	return events
}

// PutEvent pushes an appointment to the remote calendar at a
// UID-derived address. The same date/time/type always maps to the
// same address, so a retry overwrites instead of duplicating.
func (c *Client) PutEvent(ctx context.Context, appt *domain.Appointment) (string, bool) {
	if !c.IsConfigured() {
		return "", false
	}

	client, err := c.connect()
	if err != nil {
		log.Printf("caldav: %v", err)
		return "", false
	}

	cal, err := ics.BuildEvent(appt, c.loc)
	if err != nil {
		log.Printf("caldav: build event: %v", err)
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, shortTimeout)
	defer cancel()

	uid := ics.UID(appt.Date, appt.Time, appt.Type)
	if _, err := client.PutCalendarObject(ctx, c.eventPath(uid), cal); err != nil {
		metrics.CalDAVRequest("put", false)
		log.Printf("caldav: put event %s: %v", uid, err)
		return "", false
	}
	metrics.CalDAVRequest("put", true)
	return uid, true
}

// DeleteEvent removes an appointment's remote event. The stored UID is
// used when present; legacy rows without one fall back to fetching the
// day's events and matching on start time and summary, which can miss
// events whose summary was edited out-of-band. An already-deleted
// event counts as success. The DELETE goes out as a raw request so the
// 404 case is distinguishable by status code.
func (c *Client) DeleteEvent(ctx context.Context, appt *domain.Appointment) bool {
	if !c.IsConfigured() {
		return false
	}

	uid := appt.CalDAVUID
	if uid == "" {
		uid = c.matchEventUID(ctx, appt)
		if uid == "" {
			return false
		}
	}

	ctx, cancel := context.WithTimeout(ctx, shortTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/"+uid+".ics", nil)
	if err != nil {
		log.Printf("caldav: build DELETE request: %v", err)
		return false
	}

	resp, err := c.httpClient(shortTimeout).Do(req)
	if err != nil {
		metrics.CalDAVRequest("delete", false)
		log.Printf("caldav: delete event %s: %v", uid, err)
		return false
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		metrics.CalDAVRequest("delete", true)
		return true
	default:
		metrics.CalDAVRequest("delete", false)
		log.Printf("caldav: delete event %s: HTTP %d", uid, resp.StatusCode)
		return false
	}
}

// matchEventUID re-derives the UID for rows created before UIDs were
// stored locally, confirming first that a matching event exists on the
// remote calendar.
func (c *Client) matchEventUID(ctx context.Context, appt *domain.Appointment) string {
	for _, ev := range c.FetchEvents(ctx, appt.Date) {
		if ev.Start.In(c.loc).Format("15:04") == appt.Time && strings.Contains(ev.Summary, appt.Type) {
			return ics.UID(appt.Date, appt.Time, appt.Type)
		}
	}
	return ""
}
