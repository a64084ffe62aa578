// Package credentials persists the MiniMax API token and group ID in a
// single JSON file and watches that file for external edits.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/minimax-status/internal/logger"
	"github.com/j-veylop/minimax-status/internal/models"
)

const debounceInterval = 100 * time.Millisecond

// Store reads and writes the credential file. It keeps no in-memory copy:
// every Load goes to disk.
type Store struct {
	path string
}

// New creates a store backed by the file at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the credential file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the credential file. It returns nil when the file is absent or
// cannot be parsed; parse failures are logged rather than returned.
func (s *Store) Load() *models.Credentials {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to read credentials", "path", s.path, "error", err)
		}
		return nil
	}

	var creds models.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		logger.Warn("failed to parse credentials", "path", s.path, "error", err)
		return nil
	}
	return &creds
}

// Save overwrites the credential file with the given token and group ID.
// Unrelated fields in an existing file are not preserved.
func (s *Store) Save(token, groupID string) error {
	data, err := json.MarshalIndent(models.Credentials{Token: token, GroupID: groupID}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create credentials directory: %w", err)
		}
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// Watch calls onChange whenever the credential file is created, written,
// removed or renamed. Bursts of events are debounced. Watching stops when
// ctx is cancelled.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory (to catch file creation/deletion)
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}

	go s.watchLoop(ctx, watcher, onChange)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, onChange func()) {
	var timer *time.Timer

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		if err := watcher.Close(); err != nil {
			logger.Error("failed to close watcher", "error", err)
		}
	}()

	base := filepath.Base(s.path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// Debounce rapid changes
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceInterval, onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("credentials watcher error", "error", err)

		case <-ctx.Done():
			return
		}
	}
}
