package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// SpoolSource tails *.jsonl files in a directory, one Event per line.
// Files present at start are read from the beginning; appended lines are
// picked up as they are written. A trailing line without a newline waits
// for the next write.
type SpoolSource struct {
	Dir    string
	Logger *slog.Logger

	offsets map[string]int64
}

// NewSpoolSource returns a source reading dir.
func NewSpoolSource(dir string, logger *slog.Logger) *SpoolSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpoolSource{Dir: dir, Logger: logger, offsets: make(map[string]int64)}
}

// Run watches the directory until ctx ends.
func (s *SpoolSource) Run(ctx context.Context, out chan<- Event) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("capture: spool dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("capture: spool watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(s.Dir); err != nil {
		return fmt.Errorf("capture: watch %s: %w", s.Dir, err)
	}

	existing, _ := filepath.Glob(filepath.Join(s.Dir, "*.jsonl"))
	for _, path := range existing {
		if err := s.drain(ctx, path, out); err != nil {
			s.Logger.Warn("capture: spool read", "path", path, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".jsonl") {
				continue
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				if err := s.drain(ctx, event.Name, out); err != nil {
					s.Logger.Warn("capture: spool read", "path", event.Name, "error", err)
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				delete(s.offsets, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.Logger.Warn("capture: spool watcher error", "error", err)
		}
	}
}

// drain emits every complete line of path past the recorded offset.
func (s *SpoolSource) drain(ctx context.Context, path string, out chan<- Event) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	off := s.offsets[path]
	if st, err := f.Stat(); err == nil && st.Size() < off {
		off = 0 // truncated
	}
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return err
	}

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		off += int64(len(line))
		s.offsets[path] = off

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			s.Logger.Debug("capture: spool bad line", "path", path, "error", err)
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}
