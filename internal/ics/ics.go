package ics

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/domain"
)

const prodID = "-//REVENTOR.EU//Easy Calendar Appointment Booking//EN"

// Event is a calendar event reconstructed from remote iCalendar data.
// Start and End are always converted to the configured display
// timezone so they compare directly against locally generated slot
// instants.
type Event struct {
	Start   time.Time
	End     time.Time
	Summary string
}

// UID derives the deterministic event UID for a booking. Repeated
// bookings of the same date/time/type map to the same UID on purpose,
// which makes CalDAV pushes idempotent and lets the delete path
// re-derive the remote address without a stored foreign key.
func UID(date, timeOfDay, appointmentType string) string {
	sum := md5.Sum([]byte(date + timeOfDay + appointmentType))
	return fmt.Sprintf("eab-%x", sum)
}

// ParseEvents decodes raw iCalendar text and extracts all VEVENTs.
// Events with a missing or unparseable DTSTART/DTEND are dropped and
// counted, never fatal to the batch. The returned error is only
// non-nil when the payload contains no decodable calendar at all.
func ParseEvents(data []byte, loc *time.Location) ([]Event, int, error) {
	dec := ical.NewDecoder(bytes.NewReader(data))

	var events []Event
	skipped := 0
	decoded := 0
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			if decoded == 0 {
				return nil, skipped, fmt.Errorf("decode icalendar: %w", err)
			}
			break
		}
		decoded++
		evs, sk := EventsFromCalendar(cal, loc)
		events = append(events, evs...)
		skipped += sk
	}

	if skipped > 0 {
		log.Printf("ics: skipped %d malformed events", skipped)
	}
	return events, skipped, nil
}

// EventsFromCalendar extracts VEVENTs from an already decoded
// calendar, converting all instants to loc.
func EventsFromCalendar(cal *ical.Calendar, loc *time.Location) ([]Event, int) {
	if loc == nil {
		loc = time.UTC
	}

	var events []Event
	skipped := 0
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}

		startProp := comp.Props.Get(ical.PropDateTimeStart)
		endProp := comp.Props.Get(ical.PropDateTimeEnd)
		if startProp == nil || endProp == nil {
			skipped++
			continue
		}

		start, err := startProp.DateTime(loc)
		if err != nil {
			skipped++
			continue
		}
		end, err := endProp.DateTime(loc)
		if err != nil {
			skipped++
			continue
		}

		ev := Event{Start: start.In(loc), End: end.In(loc)}
		if prop := comp.Props.Get(ical.PropSummary); prop != nil {
			ev.Summary = prop.Value
		}
		events = append(events, ev)
	}
	return events, skipped
}

// BuildEvent builds the single-event calendar pushed to the CalDAV
// server. Instants are emitted as UTC; the server renders them in
// whatever zone its clients use.
func BuildEvent(appt *domain.Appointment, loc *time.Location) (*ical.Calendar, error) {
	start, err := appt.StartTime(loc)
	if err != nil {
		return nil, err
	}
	end := start.Add(time.Duration(appt.Duration) * time.Minute)

	summary := appt.Type + " - " + appt.Name
	description := "Client: " + appt.Name + "\nEmail: " + appt.Email
	if appt.Phone != "" {
		description += "\nPhone: " + appt.Phone
	}
	if appt.Notes != "" {
		description += "\nNotes: " + appt.Notes
	}
	if appt.MeetingURL != "" {
		description += "\nMeeting link: " + appt.MeetingURL
	}

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, UID(appt.Date, appt.Time, appt.Type))
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	event.Props.SetText(ical.PropSummary, summary)
	event.Props.SetText(ical.PropDescription, description)
	if appt.MeetingURL != "" {
		event.Props.SetText(ical.PropLocation, appt.MeetingURL)
		urlProp := ical.NewProp(ical.PropURL)
		urlProp.Value = appt.MeetingURL
		event.Props.Set(urlProp)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Children = append(cal.Children, event.Component)
	return cal, nil
}

// Encode serializes a calendar to iCalendar text.
func Encode(cal *ical.Calendar) (string, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("encode icalendar: %w", err)
	}
	return buf.String(), nil
}

// GenerateICS renders the confirmation attachment for an appointment:
// a VCALENDAR with a VTIMEZONE block and TZID-qualified instants when
// a named non-UTC zone is configured. A zone that cannot be resolved
// falls back to UTC instants; a booking never fails over a timezone
// name.
func GenerateICS(appt *domain.Appointment, loc *time.Location, siteName string) string {
	if loc == nil {
		loc = time.UTC
	}

	start, err := appt.StartTime(loc)
	if err != nil {
		log.Printf("ics: %v, falling back to UTC", err)
		loc = time.UTC
		start, _ = appt.StartTime(loc)
	}
	end := start.Add(time.Duration(appt.Duration) * time.Minute)

	useZone := loc != time.UTC && loc.String() != "UTC" && loc.String() != "Local"

	summary := fmt.Sprintf("%s - %s - %d min", siteName, appt.Type, appt.Duration)
	description := "Appointment details:\n"
	description += "Service: " + appt.Type + "\n"
	description += "Date: " + appt.Date + "\n"
	description += "Time: " + appt.Time + "\n"
	description += fmt.Sprintf("Duration: %d minutes\n", appt.Duration)
	description += "Name: " + appt.Name + "\n"
	phone := appt.Phone
	if phone == "" {
		phone = "---"
	}
	description += "Phone: " + phone + "\n"
	if appt.Notes != "" {
		description += "Notes: " + appt.Notes + "\n"
	}
	if appt.MeetingURL != "" {
		description += "Meeting link: " + appt.MeetingURL + "\n"
	}

	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteString("\r\n")
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:" + prodID)
	line("CALSCALE:GREGORIAN")
	line("METHOD:PUBLISH")

	if useZone {
		b.WriteString(VTimezone(loc, time.Now()))
		line("BEGIN:VEVENT")
		line("UID:" + UID(appt.Date, appt.Time, appt.Type))
		line("DTSTAMP:" + time.Now().UTC().Format("20060102T150405Z"))
		line("DTSTART;TZID=" + loc.String() + ":" + start.Format("20060102T150405"))
		line("DTEND;TZID=" + loc.String() + ":" + end.Format("20060102T150405"))
	} else {
		line("BEGIN:VEVENT")
		line("UID:" + UID(appt.Date, appt.Time, appt.Type))
		line("DTSTAMP:" + time.Now().UTC().Format("20060102T150405Z"))
		line("DTSTART:" + start.UTC().Format("20060102T150405Z"))
		line("DTEND:" + end.UTC().Format("20060102T150405Z"))
	}

	location := appt.MeetingURL
	if location == "" {
		location = "Online Meeting"
	}

	line("SUMMARY:" + Escape(summary))
	line("DESCRIPTION:" + Escape(description))
	line("LOCATION:" + Escape(location))
	if appt.MeetingURL != "" {
		line("URL:" + appt.MeetingURL)
	}
	line("STATUS:CONFIRMED")
	line("END:VEVENT")
	line("END:VCALENDAR")

	return b.String()
}

// Escape escapes text per RFC 5545: backslash-comma, backslash-semicolon
// and literal \n for newlines.
func Escape(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", "\\n")
	text = strings.ReplaceAll(text, ",", "\\,")
	text = strings.ReplaceAll(text, ";", "\\;")
	return text
}
