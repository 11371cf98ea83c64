// Package notify sends the seat-opened email. Delivery is best-effort: the
// watcher logs a failed send and moves on.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
)

// Event is the ephemeral payload of one notification: who to tell, which
// course, and the enrollment snapshot at send time.
type Event struct {
	Email      string
	CourseName string
	CourseNum  string
	Title      string
	Enrolled   int
	Limit      int
}

// Config holds the SMTP settings, environment-supplied in production.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// SendTimeout bounds one SMTP conversation. Default: 30s.
	SendTimeout time.Duration
}

func (c *Config) defaults() {
	if c.Port == 0 {
		c.Port = 587
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
}

// Mailer sends seat-opened notifications over SMTP.
type Mailer struct {
	cfg Config
}

// NewMailer creates a Mailer.
func NewMailer(cfg Config) *Mailer {
	cfg.defaults()
	return &Mailer{cfg: cfg}
}

// Compose builds the message for an event. Split out from SeatOpened so the
// rendered subject and body are testable without an SMTP server.
func Compose(from string, ev Event) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{ev.Email}
	e.Subject = fmt.Sprintf("Seat open: %s %s", ev.CourseName, ev.CourseNum)

	body := fmt.Sprintf(
		"A seat just opened in %s %s", ev.CourseName, ev.CourseNum)
	if ev.Title != "" {
		body += fmt.Sprintf(" (%s)", ev.Title)
	}
	body += fmt.Sprintf(".\n\nEnrollment is now %d of %d.\n\n"+
		"Seats go fast — register as soon as you can.\n", ev.Enrolled, ev.Limit)
	e.Text = []byte(body)
	return e
}

// SeatOpened sends the notification for ev. The SMTP conversation is
// bounded by SendTimeout and abandoned if ctx is cancelled first.
func (m *Mailer) SeatOpened(ctx context.Context, ev Event) error {
	if ev.Email == "" {
		return fmt.Errorf("notify: recipient is required")
	}

	msg := Compose(m.cfg.From, ev)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	errc := make(chan error, 1)
	go func() { errc <- msg.Send(addr, auth) }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("notify: send to %s: %w", ev.Email, err)
		}
		return nil
	case <-time.After(m.cfg.SendTimeout):
		return fmt.Errorf("notify: send to %s: timeout after %s", ev.Email, m.cfg.SendTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
