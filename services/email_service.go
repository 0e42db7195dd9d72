package services

import (
	"fmt"
	"html"

	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"

	"loancollect/config"
	"loancollect/models"
)

// DayCloseReport summarizes what a center collected on the day it was closed.
type DayCloseReport struct {
	CenterID   uint
	CenterName string
	Date       models.Date
	Collected  decimal.Decimal
	Payments   int
}

// Notifier delivers day-close reports.
type Notifier interface {
	SendDayCloseReport(report DayCloseReport) error
}

// EmailService sends mail through SMTP
type EmailService struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

// NewEmailService returns nil when SMTP or the report recipient is not configured.
func NewEmailService(cfg *config.Config) *EmailService {
	if !cfg.MailEnabled() {
		return nil
	}
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)
	from := cfg.SMTP.From
	if from == "" {
		from = cfg.SMTP.Username
	}
	return &EmailService{dialer: dialer, from: from, to: cfg.ReportEmail}
}

// SendEmail sends an HTML message
func (s *EmailService) SendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// SendDayCloseReport mails the report to the configured recipient.
func (s *EmailService) SendDayCloseReport(report DayCloseReport) error {
	subject, body := renderDayCloseReport(report)
	return s.SendEmail(s.to, subject, body)
}

func renderDayCloseReport(r DayCloseReport) (string, string) {
	subject := fmt.Sprintf("Day closed: %s (%s)", r.CenterName, r.Date)
	body := fmt.Sprintf(`
		<h2>Day close report</h2>
		<p>Center: %s (#%d)</p>
		<p>Date: %s</p>
		<p>Payments recorded: %d</p>
		<p>Total collected: &#8377;%s</p>
	`, html.EscapeString(r.CenterName), r.CenterID, r.Date, r.Payments, r.Collected.StringFixed(2))
	return subject, body
}
