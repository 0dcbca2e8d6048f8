package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"ups_trap_gateway/internal/models"
	"ups_trap_gateway/internal/notify"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks the configuration so that misconfiguration fails at startup
// rather than on the first trap.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateTrap,
		c.validateDevices,
		c.validateIndicator,
		c.validateAudible,
		c.validateNotify,
		c.validateEmail,
		c.validateSMS,
		c.validateAuth,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	if c.Journal.MaxEvents <= 0 {
		return invalid("journal.max_events must be > 0")
	}
	return nil
}

func (c *Config) validateTrap() error {
	if strings.TrimSpace(c.Trap.Listen) == "" {
		return invalid("trap.listen is required")
	}
	if _, _, err := net.SplitHostPort(c.Trap.Listen); err != nil {
		return invalid("trap.listen %q: %v", c.Trap.Listen, err)
	}
	if c.Trap.QueueSize <= 0 {
		return invalid("trap.queue_size must be > 0")
	}
	for _, src := range c.Trap.AllowedSources {
		if net.ParseIP(strings.TrimSpace(src)) == nil {
			return invalid("trap.allowed_sources: %q is not an IP address", src)
		}
	}
	return nil
}

func (c *Config) validateDevices() error {
	seen := make(map[string]struct{}, len(c.Devices))
	for i, d := range c.Devices {
		if net.ParseIP(strings.TrimSpace(d.Address)) == nil {
			return invalid("devices[%d].address %q is not an IP address", i, d.Address)
		}
		if _, dup := seen[d.Address]; dup {
			return invalid("devices[%d].address %q listed twice", i, d.Address)
		}
		seen[d.Address] = struct{}{}
	}
	return nil
}

func (c *Config) validateIndicator() error {
	switch c.Indicator.Driver {
	case "log", "sysfs":
	default:
		return invalid("indicator.driver %q: want log or sysfs", c.Indicator.Driver)
	}
	if len(c.Indicator.Channels) == 0 {
		return invalid("indicator.channels must map at least one severity")
	}
	for sev, pin := range c.Indicator.Channels {
		if _, err := models.ParseSeverity(sev); err != nil {
			return invalid("indicator.channels: %v", err)
		}
		if pin < 0 {
			return invalid("indicator.channels.%s: negative channel %d", sev, pin)
		}
	}
	if c.Indicator.BlinkInterval <= 0 {
		return invalid("indicator.blink_interval must be > 0")
	}
	return nil
}

func (c *Config) validateAudible() error {
	switch c.Audible.Backend {
	case "auto", "command", "log":
	default:
		return invalid("audible.backend %q: want auto, command or log", c.Audible.Backend)
	}
	if c.Audible.Backend == "command" && len(c.Audible.Command) == 0 {
		return invalid("audible.command is required for the command backend")
	}
	if c.Audible.BeepDuration <= 0 {
		return invalid("audible.beep_duration must be > 0")
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.Timeout <= 0 {
		return invalid("notify.timeout must be > 0")
	}
	if c.Notify.Cooldown < 0 || c.Notify.Email.Cooldown < 0 || c.Notify.SMS.Cooldown < 0 {
		return invalid("cooldown windows must not be negative")
	}
	return nil
}

func (c *Config) validateEmail() error {
	e := c.Notify.Email
	if !e.Enabled {
		return nil
	}
	switch {
	case strings.TrimSpace(e.Server) == "":
		return invalid("notify.email.server is required when email is enabled")
	case e.Port <= 0 || e.Port > 65535:
		return invalid("notify.email.port %d out of range", e.Port)
	case strings.TrimSpace(e.From) == "":
		return invalid("notify.email.from is required when email is enabled")
	case len(e.Recipients) == 0:
		return invalid("notify.email.recipients is empty")
	case e.UseTLS && e.UseSSL:
		return invalid("notify.email.use_tls and use_ssl are mutually exclusive")
	}
	return nil
}

func (c *Config) validateSMS() error {
	s := c.Notify.SMS
	if !s.Enabled {
		return nil
	}
	u, err := url.Parse(s.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("notify.sms.api_url %q is not an absolute URL", s.APIURL)
	}
	if len(s.Recipients) == 0 && len(s.Schedule) == 0 {
		return invalid("notify.sms needs recipients or a schedule")
	}
	if _, err := c.SMSSchedule(); err != nil {
		return err
	}
	if _, err := c.SMSLocation(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAuth() error {
	if len(c.Auth.Users) == 0 {
		return nil
	}
	if strings.TrimSpace(c.Auth.SigningKey) == "" {
		return invalid("auth.signing_key is required when auth.users are configured")
	}
	if c.Auth.TokenTTL <= 0 {
		return invalid("auth.token_ttl must be > 0")
	}
	for i, u := range c.Auth.Users {
		if strings.TrimSpace(u.Username) == "" || u.Password == "" {
			return invalid("auth.users[%d] needs username and password", i)
		}
	}
	return nil
}

// SMSSchedule parses notify.sms.schedule into resolver windows.
func (c *Config) SMSSchedule() ([]notify.Window, error) {
	windows := make([]notify.Window, 0, len(c.Notify.SMS.Schedule))
	for i, w := range c.Notify.SMS.Schedule {
		win, err := notify.ParseWindow(w.Start, w.End, w.Recipients)
		if err != nil {
			return nil, invalid("notify.sms.schedule[%d]: %v", i, err)
		}
		windows = append(windows, win)
	}
	return windows, nil
}

// SMSLocation is the zone schedule windows are evaluated in.
func (c *Config) SMSLocation() (*time.Location, error) {
	name := strings.TrimSpace(c.Notify.SMS.Timezone)
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, invalid("notify.sms.timezone %q: %v", name, err)
	}
	return loc, nil
}
