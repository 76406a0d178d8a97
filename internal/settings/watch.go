package settings

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	log logrus.FieldLogger
}

// WithLogger sets the logger Watch reports reloads and errors to.
func WithLogger(l logrus.FieldLogger) WatchOption {
	return func(c *watchConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// Watch reloads path whenever it changes and calls fn with the keys that
// differ from the previously loaded values. The parent directory is watched
// so that editors replacing the file by rename are seen. A file that fails to
// load is logged and ignored. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, initial Values, fn func([]Change, Values), opts ...WatchOption) error {
	cfg := watchConfig{log: logrus.StandardLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings: watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("settings: watch %s: %w", filepath.Dir(target), err)
	}

	log := cfg.log.WithFields(logrus.Fields{
		"function": "Watch",
		"path":     target,
	})
	current := initial

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			next, err := Load(target)
			if err != nil {
				log.WithError(err).Warn("Ignoring unreadable settings")
				continue
			}

			changes := Diff(current, next)
			current = next
			if len(changes) == 0 {
				continue
			}

			log.WithField("changes", len(changes)).Info("Settings reloaded")
			fn(changes, next)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Watcher error")
		}
	}
}
