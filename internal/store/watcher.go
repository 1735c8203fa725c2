package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce window for editors that fire several events per save.
const watchSettle = 250 * time.Millisecond

// Watch reloads the document when the backing file is edited outside the
// process. Our own saves go through a temp-file rename and are recognized by
// the write sequence number, so they do not trigger a reload.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: atomic renames replace the file inode, which
	// would silently detach a file-level watch.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return err
	}

	var (
		pending  bool
		settle   = time.NewTimer(watchSettle)
		lastSeen = s.currentWriteSeq()
	)
	if !settle.Stop() {
		<-settle.C
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("document watcher stopped")
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !pending {
				pending = true
				settle.Reset(watchSettle)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error("document watcher error", slog.Any("error", err))

		case <-settle.C:
			pending = false
			seq := s.currentWriteSeq()
			if seq != lastSeen {
				// The event batch was (at least partly) our own save.
				lastSeen = seq
				continue
			}
			s.reloadFromDisk()
			lastSeen = s.currentWriteSeq()
		}
	}
}

func (s *Store) currentWriteSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeSeq
}

func (s *Store) reloadFromDisk() {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := loadDocument(s.path, s.log)
	if migrate(fresh) {
		fresh.normalize()
	}
	s.doc = fresh
	s.log.Info("document reloaded after external edit", slog.String("path", s.path))
}
