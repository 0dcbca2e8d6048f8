package trap

import (
	"sort"
	"strings"

	"ups_trap_gateway/internal/models"
)

// Directory maps source addresses to configured devices.
type Directory struct {
	byAddr   map[string]models.Device
	fallback models.Device
}

// NewDirectory copies devices; sources not listed resolve to fallback.
func NewDirectory(devices map[string]models.Device, fallback models.Device) *Directory {
	d := &Directory{byAddr: make(map[string]models.Device, len(devices)), fallback: fallback}
	for addr, dev := range devices {
		d.byAddr[strings.TrimSpace(addr)] = dev
	}
	return d
}

func (d *Directory) Device(source string) models.Device {
	if dev, ok := d.byAddr[source]; ok {
		return dev
	}
	return d.fallback
}

// Addresses lists configured sources in order.
func (d *Directory) Addresses() []string {
	out := make([]string, 0, len(d.byAddr))
	for a := range d.byAddr {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
