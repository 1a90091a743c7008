package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabasePath string
	ServerPort   string

	Timezone *time.Location

	WorkingDays       map[string]bool
	WorkingHoursStart string
	WorkingHoursEnd   string
	SlotDuration      int
	MinAdvance        string
	BookingDaysAhead  int
	AppointmentTypes  []string

	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string

	SMTPAddr   string
	SMTPFrom   string
	SiteName   string
	ThemeColor string

	// MeetingBaseURL, when set, enables per-booking video meeting
	// links generated under this base (e.g. a Jitsi instance).
	MeetingBaseURL string
}

func Load() (*Config, error) {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bookingd.db"
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "UTC"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	workingDays := map[string]bool{}
	daysEnv := os.Getenv("WORKING_DAYS")
	if daysEnv == "" {
		daysEnv = "monday,tuesday,wednesday,thursday,friday"
	}
	for _, d := range strings.Split(daysEnv, ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			workingDays[d] = true
		}
	}

	hoursStart := os.Getenv("WORKING_HOURS_START")
	if hoursStart == "" {
		hoursStart = "09:00"
	}
	hoursEnd := os.Getenv("WORKING_HOURS_END")
	if hoursEnd == "" {
		hoursEnd = "17:00"
	}
	for _, h := range []string{hoursStart, hoursEnd} {
		if _, err := time.Parse("15:04", h); err != nil {
			return nil, fmt.Errorf("invalid working hours %q: %w", h, err)
		}
	}

	duration := 30
	if d := os.Getenv("SLOT_DURATION"); d != "" {
		duration, err = strconv.Atoi(d)
		if err != nil || duration <= 0 {
			return nil, fmt.Errorf("SLOT_DURATION must be a positive number of minutes")
		}
	}

	minAdvance := os.Getenv("MIN_BOOKING_ADVANCE")
	if minAdvance == "" {
		minAdvance = "2h"
	}

	daysAhead := 7
	if d := os.Getenv("BOOKING_DAYS_AHEAD"); d != "" {
		daysAhead, err = strconv.Atoi(d)
		if err != nil || daysAhead <= 0 {
			return nil, fmt.Errorf("BOOKING_DAYS_AHEAD must be a positive number of days")
		}
	}

	var types []string
	typesEnv := os.Getenv("APPOINTMENT_TYPES")
	if typesEnv == "" {
		typesEnv = "General Consultation"
	}
	for _, t := range strings.Split(typesEnv, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}

	siteName := os.Getenv("SITE_NAME")
	if siteName == "" {
		siteName = "Easy Appointment Booking"
	}

	themeColor := os.Getenv("THEME_COLOR")
	if themeColor == "" {
		themeColor = "#007cba"
	}

	return &Config{
		DatabasePath:      dbPath,
		ServerPort:        serverPort,
		Timezone:          tz,
		WorkingDays:       workingDays,
		WorkingHoursStart: hoursStart,
		WorkingHoursEnd:   hoursEnd,
		SlotDuration:      duration,
		MinAdvance:        minAdvance,
		BookingDaysAhead:  daysAhead,
		AppointmentTypes:  types,
		CalDAVURL:         os.Getenv("CALDAV_URL"),
		CalDAVUsername:    os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:    os.Getenv("CALDAV_PASSWORD"),
		SMTPAddr:          os.Getenv("SMTP_ADDR"),
		SMTPFrom:          os.Getenv("SMTP_FROM"),
		SiteName:          siteName,
		ThemeColor:        themeColor,
		MeetingBaseURL:    strings.TrimSuffix(os.Getenv("MEETING_BASE_URL"), "/"),
	}, nil
}

// CalDAVConfigured reports whether all CalDAV credentials are present.
// Conflict checking is skipped entirely when it returns false.
func (c *Config) CalDAVConfigured() bool {
	return c.CalDAVURL != "" && c.CalDAVUsername != "" && c.CalDAVPassword != ""
}

// IsWorkingDay reports whether the given date falls on a configured
// working day, evaluated in the configured timezone.
func (c *Config) IsWorkingDay(date time.Time) bool {
	day := strings.ToLower(date.In(c.Timezone).Weekday().String())
	return c.WorkingDays[day]
}
