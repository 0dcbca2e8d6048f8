package indicator

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/spf13/afero"

	"ups_trap_gateway/internal/logger"
)

// LogDriver only logs transitions. Used where no hardware is attached.
type LogDriver struct {
	log *logger.Logger
}

func NewLogDriver(log *logger.Logger) *LogDriver {
	return &LogDriver{log: logger.OrNop(log)}
}

func (d *LogDriver) SetChannel(ch int, on bool) error {
	d.log.Debugw("indicator_set", "channel", ch, "on", on)
	return nil
}

// SysfsDriver drives GPIO pins through the sysfs interface, e.g.
// /sys/class/gpio/gpio17/value.
type SysfsDriver struct {
	fs         afero.Fs
	root       string
	activeHigh bool

	mu       sync.Mutex
	exported map[int]bool
}

func NewSysfsDriver(fs afero.Fs, root string, activeHigh bool) *SysfsDriver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if root == "" {
		root = "/sys/class/gpio"
	}
	return &SysfsDriver{fs: fs, root: root, activeHigh: activeHigh, exported: make(map[int]bool)}
}

func (d *SysfsDriver) SetChannel(ch int, on bool) error {
	if err := d.export(ch); err != nil {
		return err
	}
	level := on == d.activeHigh
	value := "0"
	if level {
		value = "1"
	}
	path := filepath.Join(d.pinDir(ch), "value")
	if err := afero.WriteFile(d.fs, path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("gpio%d value: %w", ch, err)
	}
	return nil
}

// export makes the pin available and sets it as an output, once per pin.
func (d *SysfsDriver) export(ch int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.exported[ch] {
		return nil
	}

	dir := d.pinDir(ch)
	exists, err := afero.DirExists(d.fs, dir)
	if err != nil {
		return fmt.Errorf("gpio%d: %w", ch, err)
	}
	if !exists {
		if err := afero.WriteFile(d.fs, filepath.Join(d.root, "export"), []byte(strconv.Itoa(ch)), 0o200); err != nil {
			return fmt.Errorf("export gpio%d: %w", ch, err)
		}
	}
	if err := afero.WriteFile(d.fs, filepath.Join(dir, "direction"), []byte("out"), 0o644); err != nil {
		return fmt.Errorf("gpio%d direction: %w", ch, err)
	}
	d.exported[ch] = true
	return nil
}

func (d *SysfsDriver) pinDir(ch int) string {
	return filepath.Join(d.root, "gpio"+strconv.Itoa(ch))
}
