package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/domain"
)

func sampleAppointment() *domain.Appointment {
	return &domain.Appointment{
		Name:     "Jane Doe",
		Email:    "jane@example.com",
		Type:     "Consultation",
		Date:     "2026-01-05",
		Time:     "14:00",
		Duration: 30,
	}
}

func TestUIDDeterministic(t *testing.T) {
	a := UID("2026-01-05", "14:00", "Consultation")
	b := UID("2026-01-05", "14:00", "Consultation")
	if a != b {
		t.Errorf("UID not deterministic: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "eab-") {
		t.Errorf("UID missing prefix: %s", a)
	}
	if c := UID("2026-01-05", "14:30", "Consultation"); c == a {
		t.Error("different slots must produce different UIDs")
	}
}

func TestEscape(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a,b", `a\,b`},
		{"a;b", `a\;b`},
		{"line1\nline2", `line1\nline2`},
		{"line1\r\nline2", `line1\nline2`},
		{`back\slash`, `back\\slash`},
	}
	for _, c := range cases {
		if got := Escape(c.in); got != c.want {
			t.Errorf("Escape(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseEvents_DatetimeEncodings(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("zone db unavailable: %v", err)
	}

	raw := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:utc-event",
		"DTSTART:20260105T120000Z",
		"DTEND:20260105T124500Z",
		"SUMMARY:UTC event",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:floating-event",
		"DTSTART:20260105T090000",
		"DTEND:20260105T093000",
		"SUMMARY:Floating event",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:allday-event",
		"DTSTART;VALUE=DATE:20260106",
		"DTEND;VALUE=DATE:20260107",
		"SUMMARY:All day",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	events, skipped, err := ParseEvents([]byte(raw), loc)
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if skipped != 0 {
		t.Errorf("unexpected skips: %d", skipped)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	// 12:00Z is 13:00 Berlin in January.
	if got := events[0].Start.In(loc).Format("15:04"); got != "13:00" {
		t.Errorf("UTC event not converted to display zone: got %s", got)
	}
	// Floating values read as local wall-clock time.
	if got := events[1].Start.In(loc).Format("15:04"); got != "09:00" {
		t.Errorf("floating event wall time = %s, want 09:00", got)
	}
	// Date-only values start at local midnight.
	if got := events[2].Start.In(loc).Format("2006-01-02 15:04"); got != "2026-01-06 00:00" {
		t.Errorf("all-day event start = %s", got)
	}
	if events[0].Summary != "UTC event" {
		t.Errorf("summary = %q", events[0].Summary)
	}
}

func TestParseEvents_MalformedEventDropped(t *testing.T) {
	raw := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:no-end",
		"DTSTART:20260105T120000Z",
		"SUMMARY:Missing DTEND",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:good",
		"DTSTART:20260105T140000Z",
		"DTEND:20260105T143000Z",
		"SUMMARY:Good",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	events, skipped, err := ParseEvents([]byte(raw), time.UTC)
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if skipped != 1 {
		t.Errorf("expected 1 skipped event, got %d", skipped)
	}
	if len(events) != 1 || events[0].Summary != "Good" {
		t.Errorf("good event should survive the batch: %+v", events)
	}
}

func TestParseEvents_Garbage(t *testing.T) {
	if _, _, err := ParseEvents([]byte("not an icalendar at all"), time.UTC); err == nil {
		t.Error("expected error for undecodable payload")
	}
}

func TestBuildEventRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("zone db unavailable: %v", err)
	}
	appt := sampleAppointment()

	cal, err := BuildEvent(appt, loc)
	if err != nil {
		t.Fatalf("BuildEvent: %v", err)
	}
	text, err := Encode(cal)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	events, skipped, err := ParseEvents([]byte(text), loc)
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if skipped != 0 || len(events) != 1 {
		t.Fatalf("round trip lost the event: %d events, %d skipped", len(events), skipped)
	}

	wantStart, _ := appt.StartTime(loc)
	if !events[0].Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", events[0].Start, wantStart)
	}
	if !events[0].End.Equal(wantStart.Add(30 * time.Minute)) {
		t.Errorf("end = %v, want %v", events[0].End, wantStart.Add(30*time.Minute))
	}
	if events[0].Summary != "Consultation - Jane Doe" {
		t.Errorf("summary = %q", events[0].Summary)
	}
}

func TestGenerateICS_NamedZone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("zone db unavailable: %v", err)
	}

	out := GenerateICS(sampleAppointment(), loc, "Test Site")

	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"BEGIN:VTIMEZONE\r\n",
		"TZID:Europe/Berlin\r\n",
		"DTSTART;TZID=Europe/Berlin:20260105T140000\r\n",
		"DTEND;TZID=Europe/Berlin:20260105T143000\r\n",
		"STATUS:CONFIRMED\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in generated ICS:\n%s", want, out)
		}
	}

	if !strings.Contains(out, "SUMMARY:Test Site - Consultation - 30 min") {
		t.Errorf("unexpected summary in:\n%s", out)
	}
}

func TestGenerateICS_UTCFallback(t *testing.T) {
	out := GenerateICS(sampleAppointment(), time.UTC, "Test Site")

	if strings.Contains(out, "VTIMEZONE") {
		t.Error("UTC output should not carry a VTIMEZONE block")
	}
	if !strings.Contains(out, "DTSTART:20260105T140000Z\r\n") {
		t.Errorf("expected UTC instant in:\n%s", out)
	}
}

func TestGenerateICS_MeetingLink(t *testing.T) {
	appt := sampleAppointment()
	appt.MeetingURL = "https://meet.example.com/eab-abc123"

	out := GenerateICS(appt, time.UTC, "Site")
	for _, want := range []string{
		"LOCATION:https://meet.example.com/eab-abc123\r\n",
		"URL:https://meet.example.com/eab-abc123\r\n",
		`Meeting link: https://meet.example.com/eab-abc123`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestGenerateICS_DefaultLocation(t *testing.T) {
	out := GenerateICS(sampleAppointment(), time.UTC, "Site")
	if !strings.Contains(out, "LOCATION:Online Meeting\r\n") {
		t.Errorf("missing fallback location in:\n%s", out)
	}
	if strings.Contains(out, "URL:") {
		t.Error("URL property should be absent without a meeting link")
	}
}

func TestBuildEvent_MeetingLink(t *testing.T) {
	appt := sampleAppointment()
	appt.MeetingURL = "https://meet.example.com/eab-abc123"

	cal, err := BuildEvent(appt, time.UTC)
	if err != nil {
		t.Fatalf("BuildEvent: %v", err)
	}
	text, err := Encode(cal)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(text, "https://meet.example.com/eab-abc123") {
		t.Errorf("meeting link missing from pushed event:\n%s", text)
	}
}

func TestGenerateICS_EscapesText(t *testing.T) {
	appt := sampleAppointment()
	appt.Type = "Cut, Wash; Dry"

	out := GenerateICS(appt, time.UTC, "Site")
	if !strings.Contains(out, `Cut\, Wash\; Dry`) {
		t.Errorf("free text not escaped:\n%s", out)
	}
}

func TestVTimezone_DSTZone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("zone db unavailable: %v", err)
	}

	out := VTimezone(loc, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))

	for _, want := range []string{
		"BEGIN:VTIMEZONE",
		"TZID:Europe/Berlin",
		"BEGIN:STANDARD",
		"BEGIN:DAYLIGHT",
		"TZOFFSETTO:+0100",
		"TZOFFSETTO:+0200",
		"END:VTIMEZONE",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestVTimezone_FixedZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("zone db unavailable: %v", err)
	}

	out := VTimezone(loc, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	if strings.Contains(out, "DAYLIGHT") {
		t.Errorf("Tokyo has no DST, got:\n%s", out)
	}
	if !strings.Contains(out, "TZOFFSETTO:+0900") {
		t.Errorf("missing fixed offset in:\n%s", out)
	}
}

func TestFormatOffset(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{3600, "+0100"},
		{7200, "+0200"},
		{-18000, "-0500"},
		{19800, "+0530"},
		{0, "+0000"},
	}
	for _, c := range cases {
		if got := formatOffset(c.seconds); got != c.want {
			t.Errorf("formatOffset(%d) = %s, want %s", c.seconds, got, c.want)
		}
	}
}
