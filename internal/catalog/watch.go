package catalog

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watch reloads the catalog whenever its YAML file changes, until the
// context is cancelled. It watches the parent directory so editors that
// replace the file via rename are still picked up. A catalog without a
// file is a no-op.
func (c *Catalog) Watch(ctx context.Context) error {
	if c == nil || c.path == "" {
		return nil
	}
	watcher, errNew := fsnotify.NewWatcher()
	if errNew != nil {
		return fmt.Errorf("catalog: create watcher: %w", errNew)
	}
	defer func() {
		_ = watcher.Close()
	}()

	dir := filepath.Dir(c.path)
	if errAdd := watcher.Add(dir); errAdd != nil {
		return fmt.Errorf("catalog: watch %s: %w", dir, errAdd)
	}
	target := filepath.Clean(c.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if errReload := c.Reload(); errReload != nil {
				log.WithError(errReload).Warn("catalog: reload failed, keeping previous packages")
				continue
			}
			log.WithField("path", c.path).Info("catalog: reloaded")
		case errWatch, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(errWatch).Warn("catalog: watch error")
		}
	}
}
