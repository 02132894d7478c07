package player

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

var reloadDebounce = 300 * time.Millisecond

// Watch reloads the session whenever its file is written or replaced, until
// ctx is done. The directory is watched so editors that rename over the file
// are noticed too.
func (s *Session) Watch(ctx context.Context) error {
	if s.path == "" {
		return errors.New("session is not bound to a file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrapf(err, "Failed to create watcher")
	}
	defer watcher.Close()

	target, err := filepath.Abs(s.path)
	if err != nil {
		return errors.Wrapf(err, "Failed to resolve %q", s.path)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return errors.Wrapf(err, "Failed to watch %q", filepath.Dir(target))
	}
	s.log.Info().Str("path", target).Msg("watching for changes")

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s.log.Debug().Str("op", event.Op.String()).Msg("file changed")

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				if err := s.Reload(); err != nil {
					s.log.Warn().Err(err).Msg("keeping previous motion")
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error().Err(err).Msg("watcher error")
		}
	}
}
