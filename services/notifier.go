package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"gopkg.in/gomail.v2"

	"github.com/HSouheill/devzon_backend/config"
)

// ErrQueueFull is returned when a message cannot be queued without blocking.
var ErrQueueFull = errors.New("notification queue is full")

// Email is one outgoing message
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers a single email
type Mailer interface {
	Send(msg Email) error
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(settings config.SMTPSettings) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(settings.Host, settings.Port, settings.User, settings.Pass),
		from:   settings.From,
	}
}

func (m *SMTPMailer) Send(msg Email) error {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogMailer only logs messages. Used when SMTP is not configured.
type LogMailer struct {
	logger *log.Logger
}

func NewLogMailer() *LogMailer {
	return &LogMailer{logger: log.New(os.Stdout, "[MAIL] ", log.LstdFlags)}
}

func (m *LogMailer) Send(msg Email) error {
	m.logger.Printf("SMTP disabled, dropping %q to %s", msg.Subject, maskEmail(msg.To))
	return nil
}

// MailFailure reports a message that could not be delivered
type MailFailure struct {
	To      string
	Subject string
	Err     error
}

// NotificationQueue sends mail on a background worker so request handlers
// never wait on SMTP. Delivery failures go to Failures and never back to the
// caller that enqueued the message.
type NotificationQueue struct {
	mailer   Mailer
	jobs     chan Email
	failures chan MailFailure
	wg       sync.WaitGroup
	once     sync.Once
	mu       sync.RWMutex
	closed   bool
	logger   *log.Logger
}

func NewNotificationQueue(mailer Mailer, size int) *NotificationQueue {
	if size <= 0 {
		size = 64
	}
	return &NotificationQueue{
		mailer:   mailer,
		jobs:     make(chan Email, size),
		failures: make(chan MailFailure, size),
		logger:   log.New(os.Stdout, "[MAIL] ", log.LstdFlags),
	}
}

// Start launches the delivery worker
func (q *NotificationQueue) Start() {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for msg := range q.jobs {
			if err := q.mailer.Send(msg); err != nil {
				q.logger.Printf("Failed to send %q to %s: %v", msg.Subject, maskEmail(msg.To), err)
				select {
				case q.failures <- MailFailure{To: msg.To, Subject: msg.Subject, Err: err}:
				default:
				}
			}
		}
	}()
}

// Enqueue queues msg without blocking
func (q *NotificationQueue) Enqueue(msg Email) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueFull
	}

	select {
	case q.jobs <- msg:
		return nil
	default:
		q.logger.Printf("Queue full, dropping %q to %s", msg.Subject, maskEmail(msg.To))
		return ErrQueueFull
	}
}

// Failures exposes delivery errors. It is closed by Close.
func (q *NotificationQueue) Failures() <-chan MailFailure {
	return q.failures
}

// Close stops accepting messages and waits for queued ones to be sent
func (q *NotificationQueue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()

		q.wg.Wait()
		close(q.failures)
	})
}

// OTPEmail builds the registration confirmation message
func OTPEmail(to, name, otp string) Email {
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Confirm your DevzON account</h2>
			<p>Hello %s,</p>
			<p>Use the following code to verify your email address:</p>
			<h3 style="background-color: #f0f0f0; padding: 10px; font-size: 24px; letter-spacing: 5px; text-align: center;">%s</h3>
			<p>This code will expire in 10 minutes.</p>
			<p>If you did not create an account, please ignore this email.</p>
			<p>Thank you,<br>The DevzON Team</p>
		</body>
		</html>
	`, name, otp)

	return Email{To: to, Subject: "Your DevzON verification code", HTML: body}
}

// maskEmail partially masks an email address for logs
func maskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}
	name := parts[0]
	if len(name) <= 2 {
		return name + "***@" + parts[1]
	}
	return name[:2] + "***@" + parts[1]
}
