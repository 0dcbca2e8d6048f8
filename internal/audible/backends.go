package audible

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"ups_trap_gateway/internal/logger"
)

// CommandBackend runs an external command once per beep, e.g.
// "beep -f 1000 -l 500".
type CommandBackend struct {
	argv []string
}

func NewCommandBackend(argv []string) (*CommandBackend, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("audible: empty command")
	}
	return &CommandBackend{argv: append([]string(nil), argv...)}, nil
}

func (b *CommandBackend) Beep(ctx context.Context, count int, each time.Duration) error {
	for i := 0; i < count; i++ {
		if i > 0 {
			// gap between beeps
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(each / 2):
			}
		}
		cmd := exec.CommandContext(ctx, b.argv[0], b.argv[1:]...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("%s: %w: %s", b.argv[0], err, out)
		}
	}
	return nil
}

// LogBackend logs patterns instead of sounding them and takes as long as the
// pattern would.
type LogBackend struct {
	log *logger.Logger
}

func NewLogBackend(log *logger.Logger) *LogBackend {
	return &LogBackend{log: logger.OrNop(log)}
}

func (b *LogBackend) Beep(ctx context.Context, count int, each time.Duration) error {
	b.log.Infow("audible_beep", "count", count, "each", each)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(count) * each):
		return nil
	}
}

// SelectBackend resolves audible.backend. "auto" uses the command when its
// binary is on PATH and falls back to logging otherwise.
func SelectBackend(kind string, argv []string, log *logger.Logger) (Backend, error) {
	switch kind {
	case "log":
		return NewLogBackend(log), nil
	case "command":
		return NewCommandBackend(argv)
	case "auto", "":
		if len(argv) > 0 {
			if _, err := exec.LookPath(argv[0]); err == nil {
				return NewCommandBackend(argv)
			}
		}
		logger.OrNop(log).Warnw("audible_command_missing", "command", argv)
		return NewLogBackend(log), nil
	default:
		return nil, fmt.Errorf("audible: unknown backend %q", kind)
	}
}
