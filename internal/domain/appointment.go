package domain

import (
	"fmt"
	"time"
)

// Status of a locally stored appointment.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Appointment is a locally stored booking. Date and Time are kept as
// plain strings ("2006-01-02" / "15:04") and only combined into an
// instant through StartTime, always in an explicit timezone.
type Appointment struct {
	ID         int64
	Name       string
	Email      string
	Phone      string
	Type       string
	Date       string
	Time       string
	Duration   int
	Notes      string
	MeetingURL string
	CalDAVUID  string
	Status     Status
	CreatedAt  time.Time
}

// StartTime combines Date and Time into an instant in loc.
func (a *Appointment) StartTime(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse appointment start: %w", err)
	}
	return t, nil
}

// EndTime is StartTime plus the appointment duration.
func (a *Appointment) EndTime(loc *time.Location) (time.Time, error) {
	start, err := a.StartTime(loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(a.Duration) * time.Minute), nil
}

// SlotStatus classifies a candidate slot in the admin preview.
// Past takes priority over outside_hours, which takes priority over
// booked, which takes priority over available.
type SlotStatus string

const (
	SlotPast         SlotStatus = "past"
	SlotOutsideHours SlotStatus = "outside_hours"
	SlotBooked       SlotStatus = "booked"
	SlotAvailable    SlotStatus = "available"
)

// SlotInfo is one candidate slot with its preview classification.
type SlotInfo struct {
	Time   string     `json:"time"`
	Status SlotStatus `json:"status"`
	Reason string     `json:"reason"`
}
