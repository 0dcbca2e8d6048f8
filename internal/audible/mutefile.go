package audible

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"ups_trap_gateway/internal/logger"
)

// Muter is the part of Controller the mute-file watcher drives.
type Muter interface {
	Muted() bool
	SetMuted(muted bool)
}

// WatchMuteFile keeps m muted while path exists. An absent file at start
// keeps the configured state; only a later removal unmutes. The parent
// directory is watched so the file may be created and removed freely. It
// blocks until ctx is done.
func WatchMuteFile(ctx context.Context, path string, m Muter, log *logger.Logger) error {
	log = logger.OrNop(log)
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("mute file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	m.SetMuted(m.Muted() || fileExists(path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create):
				m.SetMuted(true)
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				m.SetMuted(fileExists(path))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorw("mute_watch_error", "path", path, "err", err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
