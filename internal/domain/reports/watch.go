package reports

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"bread/pkg/logger"
)

// Watch reloads the definitions from path whenever the file is written,
// until ctx is done. A file that does not load keeps the previous definitions.
func (s *Service) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch reports: %w", err)
	}
	// editors often replace the file, which drops a watch on the file itself
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("watch reports: %w", err)
	}

	name := filepath.Clean(path)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.reload(ctx, path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn(ctx, "reports watcher failed", "path", path, "error", err)
			}
		}
	}()
	return nil
}

func (s *Service) reload(ctx context.Context, path string) {
	raw, err := os.ReadFile(path)
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		// truncated mid-write; the next event brings the content
		return
	}
	defs, err := LoadYAML(bytes.NewReader(raw))
	if err != nil {
		logger.Warn(ctx, "reports file not reloaded", "path", path, "error", err)
		return
	}
	s.Replace(defs)
	logger.Info(ctx, "reports reloaded", "path", path, "count", len(defs))
}
