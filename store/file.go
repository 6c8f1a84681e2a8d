// Package store persists the runtime Settings edited through the control API.
// File keeps them in a YAML or JSON document on disk; SQLite and Postgres keep them
// as a JSON document in a kv table.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/onnwee/herald/config"
)

// File stores settings in a single file. The encoding follows the extension:
// .json uses encoding/json, anything else YAML.
type File struct {
	Path string
	// Debounce delays reloads so an editor's burst of writes triggers one callback.
	Debounce time.Duration

	mu sync.Mutex
}

// NewFile returns a file store for path.
func NewFile(path string) *File {
	return &File{Path: path, Debounce: 250 * time.Millisecond}
}

func (f *File) isJSON() bool {
	return strings.EqualFold(filepath.Ext(f.Path), ".json")
}

// Load decodes the file onto dst. A missing file yields config.ErrNotFound.
func (f *File) Load(_ context.Context, dst *config.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.ErrNotFound
	}
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return config.ErrNotFound
	}
	if f.isJSON() {
		err = json.Unmarshal(b, dst)
	} else {
		err = yaml.Unmarshal(b, dst)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", f.Path, err)
	}
	return nil
}

// Save writes s atomically (temp file + rename), creating the parent directory.
func (f *File) Save(_ context.Context, s config.Settings) error {
	var (
		b   []byte
		err error
	)
	if f.isJSON() {
		b, err = json.MarshalIndent(s, "", "  ")
	} else {
		b, err = yaml.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Watch invokes onChange (debounced) whenever the settings file is written,
// created or replaced. It blocks until ctx is done.
func (f *File) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings watch init: %w", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			slog.Warn("failed to close settings watcher", slog.Any("err", err))
		}
	}()
	// Watch the directory: editors and Save replace the file via rename.
	dir := filepath.Dir(f.Path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("settings watch add %s: %w", dir, err)
	}
	base := filepath.Base(f.Path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(f.Debounce, func() {
			if ctx.Err() == nil {
				onChange()
			}
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("settings watch error", slog.Any("err", err), slog.String("path", f.Path))
		}
	}
}
