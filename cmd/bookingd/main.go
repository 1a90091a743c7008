package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/config"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/booking"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/clients/caldav"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/mail"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/server"
	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	calClient := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.Timezone)
	if calClient.IsConfigured() {
		log.Printf("CalDAV conflict checking enabled against %s", cfg.CalDAVURL)
	} else {
		log.Println("CalDAV not configured, conflict checking disabled")
	}

	var mailer booking.Mailer
	if cfg.SMTPAddr != "" && cfg.SMTPFrom != "" {
		mailer = mail.NewConfirmationMailer(mail.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom), cfg.SiteName)
	} else {
		log.Println("SMTP not configured, confirmation emails disabled")
	}

	svc := booking.NewService(cfg, store, calClient, mailer)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: server.NewRouter(cfg, svc),
	}

	go func() {
		log.Printf("Booking server listening on :%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error stopping server: %v", err)
	}

	log.Println("Booking server stopped")
}
