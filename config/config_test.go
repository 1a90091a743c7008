package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %s", cfg.ServerPort)
	}
	if cfg.Timezone != time.UTC {
		t.Errorf("Timezone = %v, want UTC", cfg.Timezone)
	}
	if cfg.WorkingHoursStart != "09:00" || cfg.WorkingHoursEnd != "17:00" {
		t.Errorf("working hours = %s-%s", cfg.WorkingHoursStart, cfg.WorkingHoursEnd)
	}
	if cfg.SlotDuration != 30 || cfg.MinAdvance != "2h" || cfg.BookingDaysAhead != 7 {
		t.Errorf("booking defaults: %d %s %d", cfg.SlotDuration, cfg.MinAdvance, cfg.BookingDaysAhead)
	}
	if cfg.WorkingDays["saturday"] || !cfg.WorkingDays["monday"] {
		t.Errorf("WorkingDays = %v", cfg.WorkingDays)
	}
	if cfg.CalDAVConfigured() {
		t.Error("CalDAV should be unconfigured by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("WORKING_DAYS", "Monday, Wednesday")
	t.Setenv("SLOT_DURATION", "45")
	t.Setenv("APPOINTMENT_TYPES", "Cut, Color ,")
	t.Setenv("MEETING_BASE_URL", "https://meet.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Timezone.String() != "Europe/Berlin" {
		t.Errorf("Timezone = %v", cfg.Timezone)
	}
	if !cfg.WorkingDays["monday"] || !cfg.WorkingDays["wednesday"] || cfg.WorkingDays["tuesday"] {
		t.Errorf("WorkingDays = %v", cfg.WorkingDays)
	}
	if cfg.SlotDuration != 45 {
		t.Errorf("SlotDuration = %d", cfg.SlotDuration)
	}
	if len(cfg.AppointmentTypes) != 2 || cfg.AppointmentTypes[0] != "Cut" || cfg.AppointmentTypes[1] != "Color" {
		t.Errorf("AppointmentTypes = %v", cfg.AppointmentTypes)
	}
	if cfg.MeetingBaseURL != "https://meet.example.com" {
		t.Errorf("MeetingBaseURL = %q, trailing slash should be trimmed", cfg.MeetingBaseURL)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct{ key, value string }{
		{"TIMEZONE", "Mars/Olympus"},
		{"WORKING_HOURS_START", "9am"},
		{"SLOT_DURATION", "-5"},
		{"BOOKING_DAYS_AHEAD", "zero"},
	}
	for _, c := range cases {
		t.Run(c.key, func(t *testing.T) {
			t.Setenv(c.key, c.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load accepted %s=%s", c.key, c.value)
			}
		})
	}
}

func TestIsWorkingDay(t *testing.T) {
	cfg := &Config{
		Timezone:    time.UTC,
		WorkingDays: map[string]bool{"monday": true, "friday": true},
	}

	monday := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)
	if !cfg.IsWorkingDay(monday) {
		t.Error("Monday should be a working day")
	}
	if cfg.IsWorkingDay(sunday) {
		t.Error("Sunday should not be a working day")
	}
}
