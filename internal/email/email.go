package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/Domenick1991/bookingfulfillment/config"
	"github.com/Domenick1991/bookingfulfillment/internal/kafka"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/Domenick1991/bookingfulfillment/internal/money"
)

var ErrInvalidHeader = errors.New("invalid email header")

type Message struct {
	To      string
	Subject string
	Body    string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender delivers booking notifications. Without an SMTP address it only logs.
type Sender struct {
	addr string
	from string
	auth smtp.Auth
	send sendFunc
	log  logger.Logger
}

func NewSender(cfg config.EmailConfig, log logger.Logger) *Sender {
	s := &Sender{
		addr: cfg.SMTPAddr,
		from: cfg.From,
		send: smtp.SendMail,
		log:  log,
	}
	if cfg.Username != "" {
		host, _, _ := strings.Cut(cfg.SMTPAddr, ":")
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return s
}

// Compose renders the notification for event. ok is false for events that do not
// warrant an email.
func Compose(event kafka.BookingEvent) (Message, bool) {
	if event.Email == "" {
		return Message{}, false
	}
	switch event.Type {
	case kafka.EventBookingConfirmed:
		return Message{
			To:      event.Email,
			Subject: fmt.Sprintf("Your flight is booked: %s", event.BookingReference),
			Body: fmt.Sprintf("Your booking is confirmed.\r\n\r\nBooking reference: %s\r\nOrder: %s\r\nTotal paid: %s %s\r\n",
				event.BookingReference, event.OrderID, event.Currency, money.Format(event.AmountTotal, event.Currency)),
		}, true
	case kafka.EventBookingFailed:
		return Message{
			To:      event.Email,
			Subject: "We could not complete your flight booking",
			Body: "Your payment was received but the airline could not confirm the booking.\r\n" +
				"Our support team has been notified and will contact you about a refund or alternative.\r\n",
		}, true
	default:
		return Message{}, false
	}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, ok := Compose(event)
	if !ok {
		return nil
	}

	if s.addr == "" {
		s.log.Info("email delivery disabled, logging message", "to", msg.To, "subject", msg.Subject, "session_key", event.SessionKey)
		return nil
	}

	to, err := headerAddress(msg.To)
	if err != nil {
		return err
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return fmt.Errorf("%w: subject contains a line break", ErrInvalidHeader)
	}

	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		s.from, to.String(), msg.Subject, msg.Body)
	if err := s.send(s.addr, s.auth, s.from, []string{to.Address}, []byte(raw)); err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	return nil
}

func headerAddress(addr string) (*mail.Address, error) {
	if strings.ContainsAny(addr, "\r\n") {
		return nil, fmt.Errorf("%w: recipient contains a line break", ErrInvalidHeader)
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: recipient %q: %w", ErrInvalidHeader, addr, err)
	}
	return parsed, nil
}
