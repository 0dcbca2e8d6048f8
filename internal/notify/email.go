package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// EmailSender delivers one email to every recipient.
type EmailSender interface {
	Send(ctx context.Context, recipients []string, subject, text, html string) error
}

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Server   string
	Port     int
	UseTLS   bool // STARTTLS is required
	UseSSL   bool // implicit TLS from the first byte
	Username string
	Password string
	From     string
	FromName string
}

type mailFunc func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends multipart/alternative mail over net/smtp.
type SMTPSender struct {
	cfg  SMTPConfig
	send mailFunc // injectable for tests
	now  func() time.Time
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Server) == "" {
		return nil, errors.New("smtp sender: empty server")
	}
	if cfg.UseTLS && cfg.UseSSL {
		return nil, errors.New("smtp sender: use_tls and use_ssl are mutually exclusive")
	}
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	s := &SMTPSender{cfg: cfg, now: time.Now}
	switch {
	case cfg.UseSSL:
		s.send = s.sendImplicitTLS
	case cfg.UseTLS:
		s.send = s.sendStartTLS
	default:
		s.send = sendPlain
	}
	return s, nil
}

func (s *SMTPSender) Send(ctx context.Context, recipients []string, subject, text, html string) error {
	if len(recipients) == 0 {
		return errors.New("smtp sender: no recipients")
	}
	msg, err := s.compose(recipients, subject, text, html)
	if err != nil {
		return fmt.Errorf("compose email: %w", err)
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Server)
	}
	addr := net.JoinHostPort(s.cfg.Server, strconv.Itoa(s.cfg.Port))
	if err := s.send(ctx, addr, auth, s.cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("smtp %s: %w", addr, err)
	}
	return nil
}

func (s *SMTPSender) compose(recipients []string, subject, text, html string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", text},
		{"text/html; charset=utf-8", html},
	} {
		if part.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	from := (&mail.Address{Name: s.cfg.FromName, Address: s.cfg.From}).String()

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// sendPlain upgrades with STARTTLS when the server offers it.
func sendPlain(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := dial(ctx, addr)
	if err != nil {
		return err
	}
	host, _, _ := net.SplitHostPort(addr)
	return deliver(conn, host, false, auth, from, to, msg)
}

func (s *SMTPSender) sendStartTLS(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := dial(ctx, addr)
	if err != nil {
		return err
	}
	return deliver(conn, s.cfg.Server, true, auth, from, to, msg)
}

func (s *SMTPSender) sendImplicitTLS(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	raw, err := dial(ctx, addr)
	if err != nil {
		return err
	}
	conn := tls.Client(raw, &tls.Config{ServerName: s.cfg.Server, MinVersion: tls.VersionTLS12})
	if err := conn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return fmt.Errorf("tls handshake: %w", err)
	}
	return deliver(conn, s.cfg.Server, false, auth, from, to, msg)
}

func dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return conn, nil
}

// deliver runs one SMTP transaction on conn and always closes it.
func deliver(conn net.Conn, host string, requireTLS bool, auth smtp.Auth, from string, to []string, msg []byte) error {
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if _, isTLS := conn.(*tls.Conn); !isTLS {
		ok, _ := c.Extension("STARTTLS")
		switch {
		case ok:
			if err := c.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		case requireTLS:
			return errors.New("server does not offer STARTTLS")
		}
	}
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
