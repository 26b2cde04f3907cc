package sms

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/otpgate/internal/config"
	"github.com/dropDatabas3/otpgate/internal/util"
)

// SMTPGateway entrega vía un gateway email-to-SMS.
type SMTPGateway struct {
	Host    string
	Port    int
	User    string
	Pass    string
	From    string
	To      string // "{phone}@gateway"
	TLSMode string // "auto" | "starttls" | "ssl" | "none"

	send func(d *mail.Dialer, m *mail.Message) error
}

func NewSMTPGateway(p config.SMSProvider) *SMTPGateway {
	g := &SMTPGateway{
		Host:    p.SMTP.Host,
		Port:    p.SMTP.Port,
		User:    p.SMTP.Username,
		Pass:    p.SMTP.Password,
		From:    p.SMTP.From,
		To:      p.SMTP.To,
		TLSMode: p.SMTP.TLS,
	}
	if g.TLSMode == "" {
		g.TLSMode = "auto"
	}
	if g.To == "" {
		g.To = "{phone}"
	}
	return g
}

func (g *SMTPGateway) rcpt(phone string) string {
	return strings.ReplaceAll(g.To, "{phone}", phone)
}

func (g *SMTPGateway) message(phone, text string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", g.From)
	m.SetHeader("To", g.rcpt(phone))
	m.SetHeader("Subject", "OTP")
	m.SetBody("text/plain", text)
	return m
}

func (g *SMTPGateway) dialer(ctx context.Context) *mail.Dialer {
	d := mail.NewDialer(g.Host, g.Port, g.User, g.Pass)
	d.TLSConfig = &tls.Config{ServerName: g.Host}
	switch g.TLSMode {
	case "ssl":
		d.SSL = true
	case "starttls":
		d.StartTLSPolicy = mail.MandatoryStartTLS
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		// auto: go-mail negocia STARTTLS si el server lo ofrece
	}
	if dl, ok := ctx.Deadline(); ok {
		d.Timeout = time.Until(dl)
	}
	return d
}

func (g *SMTPGateway) Deliver(ctx context.Context, phone, message string) error {
	send := g.send
	if send == nil {
		send = func(d *mail.Dialer, m *mail.Message) error { return d.DialAndSend(m) }
	}
	done := make(chan error, 1)
	go func() { done <- send(g.dialer(ctx), g.message(phone, message)) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", util.MaskEmail(g.rcpt(phone)), err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
