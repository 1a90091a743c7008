package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/config"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/booking"
	caldavclient "github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/clients/caldav"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/storage"
)

type handlers struct {
	cfg *config.Config
	svc *booking.Service
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var vErr *booking.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Message, Field: vErr.Field})
	case errors.Is(err, booking.ErrSlotUnavailable), errors.Is(err, booking.ErrRemoteConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		log.Printf("server: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

type slotsRequest struct {
	Date            string `json:"date"`
	AppointmentType string `json:"appointment_type"`
	Duration        int    `json:"duration"`
	AdminPreview    bool   `json:"admin_preview"`
}

func (h *handlers) getAvailableSlots(w http.ResponseWriter, r *http.Request) {
	var req slotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	result, err := h.svc.AvailableSlots(r.Context(), req.Date, req.AppointmentType, req.Duration, req.AdminPreview)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) getAvailableDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.svc.AvailableDates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

type bookRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Type     string `json:"appointment_type"`
	Duration int    `json:"duration"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Notes    string `json:"notes"`
}

type bookResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

func (h *handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	appt, err := h.svc.Book(r.Context(), booking.BookingRequest{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Type:     req.Type,
		Duration: req.Duration,
		Date:     req.Date,
		Time:     req.Time,
		Notes:    req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bookResponse{OK: true, Message: "Appointment booked successfully!", ID: appt.ID})
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid appointment id"})
		return
	}

	if err := h.svc.Cancel(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookResponse{OK: true, Message: "Appointment cancelled."})
}

type rescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

func (h *handlers) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid appointment id"})
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	appt, err := h.svc.Reschedule(r.Context(), id, req.Date, req.Time)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookResponse{OK: true, Message: "Appointment rescheduled.", ID: appt.ID})
}

type caldavTestRequest struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type caldavTestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// testCalDAV checks connectivity with the posted credentials, or the
// configured ones when the body omits them. Auth failures come back as
// a distinguishable message; this is the only place they surface
// directly.
func (h *handlers) testCalDAV(w http.ResponseWriter, r *http.Request) {
	var req caldavTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	if req.URL == "" {
		req.URL = h.cfg.CalDAVURL
		req.Username = h.cfg.CalDAVUsername
		req.Password = h.cfg.CalDAVPassword
	}

	client := caldavclient.NewClient(req.URL, req.Username, req.Password, h.cfg.Timezone)
	if err := client.TestConnection(r.Context()); err != nil {
		if errors.Is(err, caldavclient.ErrNotConfigured) {
			writeJSON(w, http.StatusOK, caldavTestResponse{Success: false,
				Message: "Please fill in all CalDAV fields (URL, username, and password)."})
			return
		}
		writeJSON(w, http.StatusOK, caldavTestResponse{Success: false, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, caldavTestResponse{Success: true, Message: "CalDAV connection successful!"})
}
