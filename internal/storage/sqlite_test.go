package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testAppointment(date, timeOfDay string) *domain.Appointment {
	return &domain.Appointment{
		Name:     "Jane Doe",
		Email:    "jane@example.com",
		Type:     "Consultation",
		Date:     date,
		Time:     timeOfDay,
		Duration: 30,
		Status:   domain.StatusConfirmed,
	}
}

func TestCreateAndGetAppointment(t *testing.T) {
	s := newTestStorage(t)

	a := testAppointment("2026-01-05", "14:00")
	a.MeetingURL = "https://meet.example.com/eab-abc123"
	if err := s.CreateAppointment(a); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if a.ID == 0 {
		t.Fatal("ID not assigned")
	}

	got, err := s.GetAppointment(a.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if got.Name != a.Name || got.Date != a.Date || got.Time != a.Time || got.Status != domain.StatusConfirmed {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.MeetingURL != a.MeetingURL {
		t.Errorf("MeetingURL = %q, want %q", got.MeetingURL, a.MeetingURL)
	}
}

func TestCreateAppointment_SlotTaken(t *testing.T) {
	s := newTestStorage(t)

	if err := s.CreateAppointment(testAppointment("2026-01-05", "14:00")); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err := s.CreateAppointment(testAppointment("2026-01-05", "14:00"))
	if !errors.Is(err, ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}

	// Same time on another date is fine.
	if err := s.CreateAppointment(testAppointment("2026-01-06", "14:00")); err != nil {
		t.Errorf("different date should not collide: %v", err)
	}
}

func TestCreateAppointment_CancelledDoesNotBlock(t *testing.T) {
	s := newTestStorage(t)

	a := testAppointment("2026-01-05", "14:00")
	a.Status = domain.StatusCancelled
	if err := s.CreateAppointment(a); err != nil {
		t.Fatalf("insert cancelled: %v", err)
	}

	// The uniqueness constraint only guards confirmed rows.
	if err := s.CreateAppointment(testAppointment("2026-01-05", "14:00")); err != nil {
		t.Errorf("cancelled row should not block the slot: %v", err)
	}
}

func TestBookedTimes(t *testing.T) {
	s := newTestStorage(t)

	for _, tm := range []string{"14:00", "09:00"} {
		if err := s.CreateAppointment(testAppointment("2026-01-05", tm)); err != nil {
			t.Fatalf("insert %s: %v", tm, err)
		}
	}
	pending := testAppointment("2026-01-05", "11:00")
	pending.Status = domain.StatusPending
	if err := s.CreateAppointment(pending); err != nil {
		t.Fatalf("insert pending: %v", err)
	}

	times, err := s.BookedTimes("2026-01-05")
	if err != nil {
		t.Fatalf("BookedTimes: %v", err)
	}
	if len(times) != 2 || times[0] != "09:00" || times[1] != "14:00" {
		t.Errorf("BookedTimes = %v, only confirmed slots expected in order", times)
	}
}

func TestUpdateStatusFreesSlot(t *testing.T) {
	s := newTestStorage(t)

	a := testAppointment("2026-01-05", "14:00")
	if err := s.CreateAppointment(a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.UpdateStatus(a.ID, domain.StatusCancelled); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	times, err := s.BookedTimes("2026-01-05")
	if err != nil {
		t.Fatalf("BookedTimes: %v", err)
	}
	if len(times) != 0 {
		t.Errorf("cancelled booking still listed: %v", times)
	}

	if err := s.CreateAppointment(testAppointment("2026-01-05", "14:00")); err != nil {
		t.Errorf("slot should be free again: %v", err)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	s := newTestStorage(t)
	if err := s.UpdateStatus(42, domain.StatusCancelled); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSchedule(t *testing.T) {
	s := newTestStorage(t)

	a := testAppointment("2026-01-05", "14:00")
	a.CalDAVUID = "eab-abc"
	if err := s.CreateAppointment(a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.CreateAppointment(testAppointment("2026-01-06", "10:00")); err != nil {
		t.Fatalf("insert second: %v", err)
	}

	// Moving onto the occupied slot must fail.
	if err := s.UpdateSchedule(a.ID, "2026-01-06", "10:00"); !errors.Is(err, ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}

	if err := s.UpdateSchedule(a.ID, "2026-01-06", "11:00"); err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}
	got, err := s.GetAppointment(a.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if got.Date != "2026-01-06" || got.Time != "11:00" {
		t.Errorf("schedule not updated: %+v", got)
	}
	if got.CalDAVUID != "" {
		t.Errorf("stale remote UID kept after reschedule: %q", got.CalDAVUID)
	}
}

func TestSetCalDAVUID(t *testing.T) {
	s := newTestStorage(t)

	a := testAppointment("2026-01-05", "14:00")
	if err := s.CreateAppointment(a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.SetCalDAVUID(a.ID, "eab-123"); err != nil {
		t.Fatalf("SetCalDAVUID: %v", err)
	}
	got, err := s.GetAppointment(a.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if got.CalDAVUID != "eab-123" {
		t.Errorf("CalDAVUID = %q", got.CalDAVUID)
	}
}

func TestListByDate(t *testing.T) {
	s := newTestStorage(t)

	if err := s.CreateAppointment(testAppointment("2026-01-05", "14:00")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	cancelled := testAppointment("2026-01-05", "15:00")
	cancelled.Status = domain.StatusCancelled
	if err := s.CreateAppointment(cancelled); err != nil {
		t.Fatalf("insert cancelled: %v", err)
	}

	appts, err := s.ListByDate("2026-01-05")
	if err != nil {
		t.Fatalf("ListByDate: %v", err)
	}
	if len(appts) != 2 {
		t.Errorf("expected all statuses listed, got %d", len(appts))
	}
}
