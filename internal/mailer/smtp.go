// Package mailer sends outbound mail over SMTP, using either implicit
// TLS or STARTTLS depending on configuration.
package mailer

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Sender delivers a single message.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends mail through an authenticated SMTP account.
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
	tls      bool
}

// NewSMTPSender creates a sender. When useTLS is true the connection
// is implicit TLS (typically port 465); otherwise STARTTLS is used
// (typically port 587).
func NewSMTPSender(host, port, username, password, from string, useTLS bool) *SMTPSender {
	if from == "" {
		from = username
	}
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		tls:      useTLS,
	}
}

// Send composes a plain-text message and delivers it. The recipient
// may be a bare address or a `Name <addr>` string.
func (s *SMTPSender) Send(to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("missing recipient address")
	}
	if subject == "" {
		subject = "(no subject)"
	}

	rcpt := extractAddress(to)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := s.host + ":" + s.port

	if s.tls {
		return s.sendWithTLS(addr, rcpt, msg.String())
	}
	return s.sendWithStartTLS(addr, rcpt, msg.String())
}

// sendWithTLS sends over an implicit TLS connection.
func (s *SMTPSender) sendWithTLS(addr, to, body string) error {
	tlsConfig := &tls.Config{ServerName: s.host}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	return s.deliver(client, to, body)
}

// sendWithStartTLS sends using STARTTLS on a plain connection.
func (s *SMTPSender) sendWithStartTLS(addr, to, body string) error {
	conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: s.host}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("SMTP STARTTLS: %w", err)
	}

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	return s.deliver(client, to, body)
}

// deliver sends a message using an already-authenticated client.
func (s *SMTPSender) deliver(client *smtp.Client, to, body string) error {
	if err := client.Mail(extractAddress(s.from)); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write([]byte(body)); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing message body: %w", err)
	}

	return client.Quit()
}

// extractAddress pulls the bare address out of a `Name <addr>` string.
func extractAddress(s string) string {
	if open := strings.LastIndexByte(s, '<'); open >= 0 {
		if close := strings.IndexByte(s[open:], '>'); close > 0 {
			return s[open+1 : open+close]
		}
	}
	return strings.TrimSpace(s)
}
