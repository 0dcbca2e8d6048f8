package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ups_trap_gateway/internal/logger"
)

// SMSSender delivers one text to one recipient. The error carries the
// gateway's diagnostic when delivery fails.
type SMSSender interface {
	Send(ctx context.Context, recipient, text string) error
}

// SMSGatewayConfig describes an HTTP GET SMS gateway.
type SMSGatewayConfig struct {
	APIURL     string
	Username   string
	Password   string
	Type       int
	ReturnMode int
}

// HTTPSMSSender talks to gateways that take the message as query parameters.
type HTTPSMSSender struct {
	cfg    SMSGatewayConfig
	client *http.Client
	log    *logger.Logger
}

// SMSOption configures the HTTP SMS sender.
type SMSOption func(*HTTPSMSSender)

func WithSMSHTTPClient(client *http.Client) SMSOption {
	return func(s *HTTPSMSSender) {
		if client != nil {
			s.client = client
		}
	}
}

func WithSMSLogger(log *logger.Logger) SMSOption {
	return func(s *HTTPSMSSender) {
		if log != nil {
			s.log = log
		}
	}
}

func NewHTTPSMSSender(cfg SMSGatewayConfig, opts ...SMSOption) (*HTTPSMSSender, error) {
	u, err := url.Parse(cfg.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("sms sender: bad api url %q", cfg.APIURL)
	}
	s := &HTTPSMSSender{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *HTTPSMSSender) Send(ctx context.Context, recipient, text string) error {
	if strings.TrimSpace(recipient) == "" {
		return errors.New("sms sender: empty recipient")
	}
	full := s.requestURL(recipient, text)
	s.log.Debugw("sms_request", "recipient", recipient, "url", MaskSecret(full, s.cfg.Password))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return fmt.Errorf("build sms request: %w", MaskError(err, s.cfg.Password))
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", MaskError(err, s.cfg.Password))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	s.log.Debugw("sms_response", "recipient", recipient, "status", resp.StatusCode, "body", strings.TrimSpace(string(body)))
	return nil
}

func (s *HTTPSMSSender) requestURL(recipient, text string) string {
	q := url.Values{}
	q.Set("destinatingAddress", recipient)
	q.Set("username", s.cfg.Username)
	q.Set("password", s.cfg.Password)
	q.Set("SMS", text)
	q.Set("type", strconv.Itoa(s.cfg.Type))
	q.Set("returnMode", strconv.Itoa(s.cfg.ReturnMode))

	sep := "?"
	if strings.Contains(s.cfg.APIURL, "?") {
		sep = "&"
	}
	return s.cfg.APIURL + sep + q.Encode()
}

// MaskSecret replaces secret (raw and query-escaped) in s with ***.
func MaskSecret(s, secret string) string {
	if secret == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(secret), "***")
	return strings.ReplaceAll(s, secret, "***")
}

// MaskError strips secret from err's text. url.Error embeds the request URL.
func MaskError(err error, secret string) error {
	if err == nil || secret == "" {
		return err
	}
	msg := err.Error()
	masked := MaskSecret(msg, secret)
	if masked == msg {
		return err
	}
	return maskedError{msg: masked, err: err}
}

type maskedError struct {
	msg string
	err error
}

func (e maskedError) Error() string { return e.msg }

func (e maskedError) Unwrap() error { return e.err }
