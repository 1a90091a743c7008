package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"time"

	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/config"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/domain"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/ics"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/metrics"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/storage"
)

// ErrSlotUnavailable is returned when the requested slot is already
// taken by a confirmed local appointment.
var ErrSlotUnavailable = errors.New("this time slot is no longer available")

// ErrRemoteConflict is returned when the requested slot overlaps an
// event on the remote calendar.
var ErrRemoteConflict = errors.New("this time slot conflicts with an existing calendar event")

// ValidationError rejects a booking request before any write, scoped
// to the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// CalendarClient is the remote calendar surface the service needs.
type CalendarClient interface {
	IsConfigured() bool
	TestConnection(ctx context.Context) error
	FetchEvents(ctx context.Context, date string) []ics.Event
	PutEvent(ctx context.Context, appt *domain.Appointment) (string, bool)
	DeleteEvent(ctx context.Context, appt *domain.Appointment) bool
}

// Mailer sends the booking confirmation with its ICS attachment.
type Mailer interface {
	SendConfirmation(appt *domain.Appointment, icsBody string) error
}

// Service resolves availability and runs the booking flow. Remote
// calendar data is fetched live on every query; there is no cache, so
// the view of the remote calendar is always current.
type Service struct {
	cfg    *config.Config
	store  *storage.Storage
	cal    CalendarClient
	mailer Mailer
	now    func() time.Time
}

func NewService(cfg *config.Config, store *storage.Storage, cal CalendarClient, mailer Mailer) *Service {
	return &Service{
		cfg:    cfg,
		store:  store,
		cal:    cal,
		mailer: mailer,
		now:    time.Now,
	}
}

func (s *Service) hours() WorkingHours {
	return WorkingHours{Start: s.cfg.WorkingHoursStart, End: s.cfg.WorkingHoursEnd}
}

func (s *Service) policy() AdvancePolicy {
	return AdvancePolicy(s.cfg.MinAdvance)
}

// SlotList is the availability result for one date. AllSlots is only
// populated in admin preview mode.
type SlotList struct {
	Slots    []string          `json:"slots"`
	AllSlots []domain.SlotInfo `json:"all_slots,omitempty"`
}

// AvailableSlots computes the bookable slots for a date: candidates
// from working hours minus confirmed local bookings minus remote
// calendar conflicts, in candidate order. In preview mode every
// in-hours slot is returned tagged with its status.
func (s *Service) AvailableSlots(ctx context.Context, date, appointmentType string, duration int, preview bool) (*SlotList, error) {
	loc := s.cfg.Timezone
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, &ValidationError{Field: "date", Message: "invalid date format, expected YYYY-MM-DD"}
	}
	if duration <= 0 {
		duration = s.cfg.SlotDuration
	}

	if !s.cfg.IsWorkingDay(day) {
		return &SlotList{Slots: []string{}}, nil
	}

	now := s.now().In(loc)
	if !preview && !MeetsMinimumAdvance(date, s.policy(), loc, now) {
		return &SlotList{Slots: []string{}}, nil
	}

	var candidates []string
	if preview {
		candidates, err = GenerateAllSlots(date, duration, s.hours(), loc)
	} else {
		candidates, err = GenerateSlots(date, duration, s.hours(), loc, s.policy(), now)
	}
	if err != nil {
		return nil, err
	}

	bookedTimes, err := s.store.BookedTimes(date)
	if err != nil {
		return nil, fmt.Errorf("load booked slots: %w", err)
	}
	booked := make(map[string]bool, len(bookedTimes))
	for _, t := range bookedTimes {
		booked[t] = true
	}

	conflicted := map[string]bool{}
	if s.cal != nil && s.cal.IsConfigured() {
		events := s.cal.FetchEvents(ctx, date)
		for _, slot := range FindConflicts(date, candidates, duration, events, loc) {
			conflicted[slot] = true
		}
	}

	available := make([]string, 0, len(candidates))
	for _, slot := range candidates {
		if !booked[slot] && !conflicted[slot] {
			available = append(available, slot)
		}
	}

	result := &SlotList{Slots: available}
	if preview {
		result.AllSlots = s.classifySlots(date, candidates, booked, conflicted, now)
	}
	return result, nil
}

// classifySlots tags preview slots. Past wins over outside_hours,
// which wins over booked, which wins over available.
func (s *Service) classifySlots(date string, candidates []string, booked, conflicted map[string]bool, now time.Time) []domain.SlotInfo {
	loc := s.cfg.Timezone
	start, end, boundsErr := dayBounds(date, s.hours(), loc)

	infos := make([]domain.SlotInfo, 0, len(candidates))
	for _, slot := range candidates {
		info := domain.SlotInfo{Time: slot, Status: domain.SlotAvailable}

		instant, err := time.ParseInLocation("2006-01-02 15:04", date+" "+slot, loc)
		switch {
		case err != nil:
			info.Status = domain.SlotOutsideHours
			info.Reason = "Unparseable time"
		case !instant.After(now):
			info.Status = domain.SlotPast
			info.Reason = "Past time"
		case boundsErr == nil && (instant.Before(start) || !instant.Before(end)):
			info.Status = domain.SlotOutsideHours
			info.Reason = "Outside working hours"
		case booked[slot]:
			info.Status = domain.SlotBooked
			info.Reason = "Booked"
		case conflicted[slot]:
			info.Status = domain.SlotBooked
			info.Reason = "Booked (calendar conflict)"
		}
		infos = append(infos, info)
	}
	return infos
}

// BookingRequest is an inbound booking submission.
type BookingRequest struct {
	Name     string
	Email    string
	Phone    string
	Type     string
	Duration int
	Date     string
	Time     string
	Notes    string
}

func (s *Service) validate(req *BookingRequest) error {
	required := []struct{ field, value string }{
		{"name", req.Name},
		{"email", req.Email},
		{"appointment_type", req.Type},
		{"date", req.Date},
		{"time", req.Time},
	}
	for _, f := range required {
		if f.value == "" {
			return &ValidationError{Field: f.field, Message: "this field is required"}
		}
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		return &ValidationError{Field: "email", Message: "please enter a valid email address"}
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return &ValidationError{Field: "date", Message: "invalid date format, expected YYYY-MM-DD"}
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		return &ValidationError{Field: "time", Message: "invalid time format, expected HH:MM"}
	}
	return nil
}

// checkSlotFree re-verifies one slot against local bookings and the
// remote calendar right before the write.
func (s *Service) checkSlotFree(ctx context.Context, date, slot string, duration int) error {
	bookedTimes, err := s.store.BookedTimes(date)
	if err != nil {
		return fmt.Errorf("load booked slots: %w", err)
	}
	for _, t := range bookedTimes {
		if t == slot {
			return ErrSlotUnavailable
		}
	}

	if s.cal != nil && s.cal.IsConfigured() {
		events := s.cal.FetchEvents(ctx, date)
		if len(FindConflicts(date, []string{slot}, duration, events, s.cfg.Timezone)) > 0 {
			return ErrRemoteConflict
		}
	}
	return nil
}

// Book validates a request, inserts the appointment and then performs
// the best-effort side effects. The local insert is the only hard
// failure point: once the row is committed, a CalDAV or email failure
// is logged and swallowed, never rolled back.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*domain.Appointment, error) {
	if err := s.validate(&req); err != nil {
		metrics.Booking("rejected")
		return nil, err
	}
	if req.Duration <= 0 {
		req.Duration = s.cfg.SlotDuration
	}

	if err := s.checkSlotFree(ctx, req.Date, req.Time, req.Duration); err != nil {
		if errors.Is(err, ErrSlotUnavailable) || errors.Is(err, ErrRemoteConflict) {
			metrics.Booking("conflict")
		} else {
			metrics.Booking("error")
		}
		return nil, err
	}

	appt := &domain.Appointment{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Type:       req.Type,
		Date:       req.Date,
		Time:       req.Time,
		Duration:   req.Duration,
		Notes:      req.Notes,
		MeetingURL: meetingURL(s.cfg.MeetingBaseURL),
		Status:     domain.StatusConfirmed,
	}
	if err := s.store.CreateAppointment(appt); err != nil {
		if errors.Is(err, storage.ErrSlotTaken) {
			// A concurrent booking won the slot between check and insert.
			metrics.Booking("conflict")
			return nil, ErrSlotUnavailable
		}
		metrics.Booking("error")
		return nil, fmt.Errorf("save appointment: %w", err)
	}
	metrics.Booking("confirmed")

	s.pushRemote(ctx, appt)
	s.sendConfirmation(appt)

	return appt, nil
}

// meetingURL derives a fresh video meeting room link under base. An
// empty base disables meeting links entirely.
func meetingURL(base string) string {
	if base == "" {
		return ""
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		log.Printf("booking: generate meeting room id: %v", err)
		return ""
	}
	return base + "/eab-" + hex.EncodeToString(buf)
}

func (s *Service) pushRemote(ctx context.Context, appt *domain.Appointment) {
	if s.cal == nil || !s.cal.IsConfigured() {
		return
	}
	uid, ok := s.cal.PutEvent(ctx, appt)
	if !ok {
		log.Printf("booking: caldav push failed for appointment %d", appt.ID)
		return
	}
	appt.CalDAVUID = uid
	if err := s.store.SetCalDAVUID(appt.ID, uid); err != nil {
		log.Printf("booking: store caldav uid for appointment %d: %v", appt.ID, err)
	}
}

func (s *Service) sendConfirmation(appt *domain.Appointment) {
	if s.mailer == nil {
		return
	}
	icsBody := ics.GenerateICS(appt, s.cfg.Timezone, s.cfg.SiteName)
	if err := s.mailer.SendConfirmation(appt, icsBody); err != nil {
		log.Printf("booking: confirmation email for appointment %d: %v", appt.ID, err)
	}
}

// Cancel marks an appointment cancelled and removes its remote event
// best-effort. Cancelling frees the slot for new bookings.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	appt, err := s.store.GetAppointment(id)
	if err != nil {
		return err
	}
	if appt.Status == domain.StatusCancelled {
		return nil
	}

	if err := s.store.UpdateStatus(id, domain.StatusCancelled); err != nil {
		return err
	}

	if s.cal != nil && s.cal.IsConfigured() {
		if !s.cal.DeleteEvent(ctx, appt) {
			log.Printf("booking: caldav delete failed for appointment %d", id)
		}
	}
	return nil
}

// Reschedule moves an appointment to a new slot. The remote calendar
// has no stable identifier to update in place, so the old event is
// deleted and a new one created under the new slot's derived UID.
func (s *Service) Reschedule(ctx context.Context, id int64, newDate, newTime string) (*domain.Appointment, error) {
	if _, err := time.Parse("2006-01-02", newDate); err != nil {
		return nil, &ValidationError{Field: "date", Message: "invalid date format, expected YYYY-MM-DD"}
	}
	if _, err := time.Parse("15:04", newTime); err != nil {
		return nil, &ValidationError{Field: "time", Message: "invalid time format, expected HH:MM"}
	}

	appt, err := s.store.GetAppointment(id)
	if err != nil {
		return nil, err
	}

	if err := s.checkSlotFree(ctx, newDate, newTime, appt.Duration); err != nil {
		return nil, err
	}

	// Commit the move first. A failed move must leave the old remote
	// event in place, so remote cleanup only happens after the update.
	if err := s.store.UpdateSchedule(id, newDate, newTime); err != nil {
		if errors.Is(err, storage.ErrSlotTaken) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	old := *appt
	if s.cal != nil && s.cal.IsConfigured() {
		if !s.cal.DeleteEvent(ctx, &old) {
			log.Printf("booking: caldav delete failed for appointment %d", id)
		}
	}

	appt.Date = newDate
	appt.Time = newTime
	appt.CalDAVUID = ""

	s.pushRemote(ctx, appt)
	s.sendConfirmation(appt)
	return appt, nil
}

// DateOption is one selectable booking date.
type DateOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// AvailableDates returns the dates within the booking window that have
// at least one bookable slot.
func (s *Service) AvailableDates(ctx context.Context) ([]DateOption, error) {
	loc := s.cfg.Timezone
	now := s.now().In(loc)

	dates := make([]DateOption, 0, s.cfg.BookingDaysAhead)
	for i := 0; i < s.cfg.BookingDaysAhead; i++ {
		day := now.AddDate(0, 0, i)
		date := day.Format("2006-01-02")

		if !s.cfg.IsWorkingDay(day) || !MeetsMinimumAdvance(date, s.policy(), loc, now) {
			continue
		}

		result, err := s.AvailableSlots(ctx, date, "", 0, false)
		if err != nil {
			log.Printf("booking: availability for %s: %v", date, err)
			continue
		}
		if len(result.Slots) > 0 {
			dates = append(dates, DateOption{Value: date, Label: day.Format("02.01.2006")})
		}
	}
	return dates, nil
}
