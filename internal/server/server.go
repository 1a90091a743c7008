package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/config"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/booking"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/metrics"
)

// NewRouter wires the booking API routes.
func NewRouter(cfg *config.Config, svc *booking.Service) http.Handler {
	h := &handlers{cfg: cfg, svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.Handler().ServeHTTP(w, r)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/slots", h.getAvailableSlots)
		r.Get("/dates", h.getAvailableDates)
		r.Post("/book", h.bookAppointment)
		r.Post("/appointments/{id}/cancel", h.cancelAppointment)
		r.Post("/appointments/{id}/reschedule", h.rescheduleAppointment)
		r.Post("/caldav/test", h.testCalDAV)
	})

	return r
}
