// Package classifier resolves raw trap notifications against the event
// knowledge base.
package classifier

import (
	"strings"

	"github.com/google/uuid"

	"ups_trap_gateway/internal/knowledge"
	"ups_trap_gateway/internal/logger"
	"ups_trap_gateway/internal/models"
)

// VendorPrefixes are enterprise subtrees whose unknown codes are still
// treated as alarms.
var VendorPrefixes = []string{
	"1.3.6.1.4.1.37662",       // ATS / Borri
	"1.3.6.1.4.1.935",         // PPC / Megatec
	"1.3.6.1.2.1.33.1.2",      // UPS-MIB upsBattery
	"1.3.6.1.4.1.318.1.1.1.2", // APC upsBattery
	"1.3.6.1.4.1.534.1",       // Eaton/Powerware
}

// Lookup is the read side of the knowledge base.
type Lookup interface {
	Lookup(code string) (models.EventRecord, bool)
}

// Devices names the equipment behind a source address.
type Devices interface {
	Device(source string) models.Device
}

type Classifier struct {
	kb      Lookup
	devices Devices
	vendors []string
	log     *logger.Logger
}

type Option func(*Classifier)

func WithDevices(d Devices) Option {
	return func(c *Classifier) {
		if d != nil {
			c.devices = d
		}
	}
}

// WithVendorPrefixes replaces VendorPrefixes.
func WithVendorPrefixes(prefixes []string) Option {
	return func(c *Classifier) {
		c.vendors = normalizePrefixes(prefixes)
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.log = l
		}
	}
}

func New(kb Lookup, opts ...Option) *Classifier {
	c := &Classifier{
		kb:      kb,
		vendors: normalizePrefixes(VendorPrefixes),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the classified event and true, or false when the code is
// neither known nor under a vendor subtree. Dropping is not an error.
func (c *Classifier) Classify(raw models.RawNotification) (models.ClassifiedEvent, bool) {
	code := knowledge.Normalize(raw.Code)

	ev := models.ClassifiedEvent{
		ID:     uuid.NewString(),
		Raw:    raw,
		Device: c.device(raw.Source),
	}

	if rec, ok := c.kb.Lookup(code); ok {
		ev.Code = rec.Code
		ev.Name = rec.Name
		ev.Description = rec.Description
		ev.Severity = rec.Severity
		ev.Role = rec.Role
		ev.Paired = rec.Paired
		ev.Test = rec.Test
		ev.Known = true
		return ev, true
	}

	if !c.isVendor(code) {
		c.log.Debugw("trap_dropped", "source", raw.Source, "code", raw.Code, "normalized", code)
		return models.ClassifiedEvent{}, false
	}

	ev.Code = code
	ev.Name = "vendorAlarm(" + code + ")"
	ev.Description = "Unrecognised trap from a monitored vendor subtree."
	ev.Severity = models.SeverityWarning
	ev.Role = models.RoleTrigger
	return ev, true
}

func (c *Classifier) device(source string) models.Device {
	if c.devices == nil {
		return models.Device{Name: "UPS", Location: "Unknown Location"}
	}
	return c.devices.Device(source)
}

func (c *Classifier) isVendor(code string) bool {
	for _, p := range c.vendors {
		if code == p || strings.HasPrefix(code, p+".") {
			return true
		}
	}
	return false
}

func normalizePrefixes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.Trim(strings.TrimSpace(p), "."); p != "" {
			out = append(out, p)
		}
	}
	return out
}
