package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"VibingStorage/logger"
	"VibingStorage/storage"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a file must stay quiet before it is imported, so
// half-copied files are not read.
const settleDelay = 300 * time.Millisecond

// EventCallback is called after a watcher-driven import.
type EventCallback func(path string)

// Watch imports audio files created or rewritten under root until ctx is
// cancelled. root must be the directory the importer's store serves.
// Directories created at runtime are watched as well.
func (im *Importer) Watch(ctx context.Context, root string, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watcher: started", logger.String("root", root))

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(settleDelay / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case now := <-ticker.C:
			for rel, last := range pending {
				if now.Sub(last) < settleDelay {
					continue
				}
				delete(pending, rel)
				created, err := im.ImportFile(ctx, rel)
				if err != nil {
					logger.Warn("watcher: import failed", logger.String("path", rel), logger.ErrorField(err))
					continue
				}
				if created && cb != nil {
					cb(rel)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed", logger.String("path", ev.Name), logger.ErrorField(addErr))
					}
					queueDir(root, ev.Name, pending)
					continue
				}
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !storage.IsAudioFile(ev.Name) {
				continue
			}
			if rel, relErr := filepath.Rel(root, ev.Name); relErr == nil {
				pending[filepath.ToSlash(rel)] = time.Now()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", logger.ErrorField(watchErr))
		}
	}
}

// queueDir schedules every audio file already inside a new directory.
func queueDir(root, dir string, pending map[string]time.Time) {
	now := time.Now()
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsAudioFile(p) {
			return nil
		}
		if rel, relErr := filepath.Rel(root, p); relErr == nil {
			pending[filepath.ToSlash(rel)] = now
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
