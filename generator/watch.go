package generator

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch regenerates the site whenever a file under dirs changes, until ctx
// is done. Bursts of events are collapsed into one run after debounce.
func (g *Generator) Watch(ctx context.Context, dirs []string, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, root := range dirs {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			g.logger.Warn("watch: directory not found", zap.String("dir", root))
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if err := watcher.Add(path); err != nil {
					g.logger.Warn("watch: add failed", zap.String("dir", path), zap.Error(err))
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	rebuild := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case rebuild <- struct{}{}:
				default:
				}
			})
		case <-rebuild:
			if n, err := g.Generate(ctx); err != nil {
				g.logger.Error("watch: rebuild failed", zap.Error(err))
			} else {
				g.logger.Info("watch: rebuilt", zap.Int("pages", n))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			g.logger.Warn("watch: watcher error", zap.Error(err))
		}
	}
}
