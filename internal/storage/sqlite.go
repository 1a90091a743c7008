package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/domain"

	"github.com/mattn/go-sqlite3"
)

// ErrSlotTaken is returned when an insert collides with an existing
// confirmed appointment for the same date and time. The unique index
// makes the availability pre-check race-safe: of two concurrent
// bookings for one slot, exactly one insert succeeds.
var ErrSlotTaken = errors.New("time slot already booked")

// ErrNotFound is returned when an appointment id does not exist.
var ErrNotFound = errors.New("appointment not found")

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite allows a single writer; one pooled connection avoids
	// SQLITE_BUSY under concurrent bookings and lets the unique index
	// arbitrate races deterministically.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS appointments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT DEFAULT '',
			appointment_type TEXT NOT NULL,
			appointment_date TEXT NOT NULL,
			appointment_time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 30,
			notes TEXT DEFAULT '',
			meeting_url TEXT DEFAULT '',
			caldav_uid TEXT DEFAULT '',
			status TEXT NOT NULL DEFAULT 'confirmed',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_date ON appointments(appointment_date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status)`,
		// At most one confirmed appointment per (date, time).
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_confirmed_slot
			ON appointments(appointment_date, appointment_time)
			WHERE status = 'confirmed'`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// CreateAppointment inserts a new appointment and fills in its ID and
// CreatedAt. A confirmed insert that collides with an existing
// confirmed slot returns ErrSlotTaken.
func (s *Storage) CreateAppointment(a *domain.Appointment) error {
	now := time.Now()
	res, err := s.db.Exec(`
		INSERT INTO appointments
			(name, email, phone, appointment_type, appointment_date, appointment_time,
			 duration_minutes, notes, meeting_url, caldav_uid, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.Email, a.Phone, a.Type, a.Date, a.Time,
		a.Duration, a.Notes, a.MeetingURL, a.CalDAVUID, string(a.Status), now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert appointment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	return nil
}

// BookedTimes returns the times of all confirmed appointments on a date.
func (s *Storage) BookedTimes(date string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT appointment_time FROM appointments
		WHERE appointment_date = ? AND status = 'confirmed'
		ORDER BY appointment_time`, date)
	if err != nil {
		return nil, fmt.Errorf("query booked times: %w", err)
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan booked time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// ListByDate returns all appointments on a date regardless of status.
func (s *Storage) ListByDate(date string) ([]*domain.Appointment, error) {
	rows, err := s.db.Query(`
		SELECT id, name, email, phone, appointment_type, appointment_date,
		       appointment_time, duration_minutes, notes, meeting_url, caldav_uid, status, created_at
		FROM appointments
		WHERE appointment_date = ?
		ORDER BY appointment_time`, date)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var appts []*domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

// GetAppointment returns one appointment by id.
func (s *Storage) GetAppointment(id int64) (*domain.Appointment, error) {
	row := s.db.QueryRow(`
		SELECT id, name, email, phone, appointment_type, appointment_date,
		       appointment_time, duration_minutes, notes, meeting_url, caldav_uid, status, created_at
		FROM appointments WHERE id = ?`, id)

	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// UpdateStatus changes an appointment's status.
func (s *Storage) UpdateStatus(id int64, status domain.Status) error {
	res, err := s.db.Exec(`UPDATE appointments SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSchedule moves an appointment to a new date and time and
// clears its remote UID, which no longer matches the new slot. Moving
// a confirmed appointment onto an occupied slot returns ErrSlotTaken.
func (s *Storage) UpdateSchedule(id int64, date, timeOfDay string) error {
	res, err := s.db.Exec(`
		UPDATE appointments SET appointment_date = ?, appointment_time = ?, caldav_uid = ''
		WHERE id = ?`, date, timeOfDay, id)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrSlotTaken
		}
		return fmt.Errorf("update schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCalDAVUID records the remote event UID pushed for an appointment.
func (s *Storage) SetCalDAVUID(id int64, uid string) error {
	_, err := s.db.Exec(`UPDATE appointments SET caldav_uid = ? WHERE id = ?`, uid, id)
	if err != nil {
		return fmt.Errorf("update caldav uid: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*domain.Appointment, error) {
	var a domain.Appointment
	var status string
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.Type, &a.Date,
		&a.Time, &a.Duration, &a.Notes, &a.MeetingURL, &a.CalDAVUID, &status, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	a.Status = domain.Status(status)
	return &a, nil
}
