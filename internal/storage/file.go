package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// File keeps all entries in one JSON object on disk. Every operation goes to
// disk so that several console processes sharing the file see each other's
// writes.
type File struct {
	path string

	mu   sync.Mutex
	last map[string]string
}

func NewFile(path string) (*File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("storage file path is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve storage file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	f := &File{path: abs}
	entries, err := f.load()
	if err != nil {
		return nil, err
	}
	// last is the view Watch diffs against. Only this File's own writes
	// advance it, one key at a time; reads never do.
	f.last = entries

	return f, nil
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return "", false, err
	}

	value, ok := entries[key]
	return value, ok, nil
}

func (f *File) Set(_ context.Context, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}

	entries[key] = value
	if err := f.saveLocked(entries); err != nil {
		return err
	}

	f.last[key] = value
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}

	if _, ok := entries[key]; !ok {
		return nil
	}

	delete(entries, key)
	if err := f.saveLocked(entries); err != nil {
		return err
	}

	delete(f.last, key)
	return nil
}

// Watch reports changes other processes make to the file. Writes made
// through this File are not reported.
func (f *File) Watch(ctx context.Context) (<-chan Change, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create storage watcher: %w", err)
	}

	// The file is replaced by rename on every save, so watch its directory.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch storage dir: %w", err)
	}

	changes := make(chan Change, 16)
	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != f.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				for _, change := range f.diff() {
					select {
					case changes <- change:
					case <-ctx.Done():
						return
					}
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("storage watcher error", "path", f.path, "error", werr)
			}
		}
	}()

	return changes, nil
}

func (f *File) diff() []Change {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.load()
	if err != nil {
		slog.Warn("storage reload failed", "path", f.path, "error", err)
		return nil
	}

	var changes []Change
	for key, value := range current {
		if prev, ok := f.last[key]; !ok || prev != value {
			changes = append(changes, Change{Key: key, Value: value})
		}
	}
	for key := range f.last {
		if _, ok := current[key]; !ok {
			changes = append(changes, Change{Key: key, Deleted: true})
		}
	}

	f.last = current
	return changes
}

func (f *File) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read storage file: %w", err)
	}

	entries := map[string]string{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode storage file: %w", err)
	}

	return entries, nil
}

func (f *File) saveLocked(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp storage file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod storage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close storage file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace storage file: %w", err)
	}

	return nil
}
