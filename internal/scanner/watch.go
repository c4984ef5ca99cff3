package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/llehouerou/shelf/internal/library"
)

// Watch refreshes folders whose contents change on disk. Events are
// collected until none arrived for the configured delay, then every
// affected folder is refreshed. It returns when ctx is done.
func (s *Scanner) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	added := make(chan library.Folder, 16)
	s.mu.Lock()
	s.added = added
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.added = nil
		s.mu.Unlock()
	}()

	folders, err := s.lib.Folders(ctx)
	if err != nil {
		return fmt.Errorf("load folders: %w", err)
	}
	for _, f := range folders {
		if err := watchTree(watcher, f.Path); err != nil {
			s.logger.Warn("cannot watch folder", zap.String("path", f.Path), zap.Error(err))
		}
	}

	timer := time.NewTimer(s.cfg.WatchDelay)
	timer.Stop()
	dirty := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil

		case f := <-added:
			if err := watchTree(watcher, f.Path); err != nil {
				s.logger.Warn("cannot watch folder", zap.String("path", f.Path), zap.Error(err))
			}

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				break
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						s.logger.Debug("cannot watch directory", zap.String("path", event.Name), zap.Error(err))
					}
				}
			}
			dirty[event.Name] = struct{}{}
			timer.Reset(s.cfg.WatchDelay)

		case err := <-watcher.Errors:
			s.logger.Warn("watch error", zap.Error(err))

		case <-timer.C:
			if retry := s.refreshDirty(ctx, dirty); retry {
				timer.Reset(s.cfg.WatchDelay)
				break
			}
			clear(dirty)
		}
	}
}

// refreshDirty refreshes the folders owning the changed paths. It reports
// whether a folder was busy and the refresh must be retried.
func (s *Scanner) refreshDirty(ctx context.Context, dirty map[string]struct{}) bool {
	folders, err := s.lib.Folders(ctx)
	if err != nil {
		s.logger.Error("load folders", zap.Error(err))
		return false
	}

	ids := make(map[int64]library.Folder)
	for path := range dirty {
		if f, ok := owningFolder(folders, path); ok {
			ids[f.ID] = f
		}
	}

	retry := false
	for _, f := range ids {
		s.logger.Debug("folder changed on disk", zap.String("path", f.Path))
		_, err := s.RefreshFolder(ctx, f.ID, false)
		switch {
		case err == nil, ctx.Err() != nil:
		case errors.Is(err, ErrAlreadyScanning):
			retry = true
		default:
			s.logger.Error("watch refresh failed", zap.String("path", f.Path), zap.Error(err))
		}
	}
	return retry
}

// watchFolder hands a newly added folder to a running watch.
func (s *Scanner) watchFolder(f library.Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.added == nil {
		return
	}
	select {
	case s.added <- f:
	default:
	}
}

// owningFolder returns the folder path belongs to.
func owningFolder(folders []library.Folder, path string) (library.Folder, bool) {
	for _, f := range folders {
		if path == f.Path || strings.HasPrefix(path, f.Path+string(os.PathSeparator)) {
			return f, true
		}
	}
	return library.Folder{}, false
}

// watchTree adds root and every directory below it. fsnotify watches are
// not recursive.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("add %s to watcher: %w", path, err)
		}
		return nil
	})
}
