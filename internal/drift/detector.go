// Package drift detects system configuration files modified by an app
// script outside of the app's own footprint. Changes are reported as
// packager warnings and never fail an operation.
package drift

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zeebo/blake3"

	"appkeeper/pkg/logging"
)

const subsystem = "Drift"

// Detector snapshots a set of configuration trees.
type Detector struct {
	roots []string
}

// NewDetector watches roots. Missing roots are ignored.
func NewDetector(roots []string) *Detector {
	return &Detector{roots: roots}
}

// Session tracks changes between Begin and End.
type Session struct {
	roots   []string
	exclude []string
	before  map[string]string

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	touched  map[string]bool
	overflow bool
	last     time.Time
	done     chan struct{}
}

// Queued events are drained until the watcher has been quiet this long.
const (
	settleQuiet = 100 * time.Millisecond
	settleMax   = time.Second
)

// Begin hashes every file under the roots and starts recording which
// files get touched. Paths under exclude belong to the app and are never
// reported.
func (d *Detector) Begin(exclude ...string) (*Session, error) {
	before, err := hashTrees(d.roots)
	if err != nil {
		return nil, err
	}
	s := &Session{
		roots:   d.roots,
		exclude: exclude,
		before:  before,
		touched: make(map[string]bool),
		done:    make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Debug(subsystem, "File watching unavailable, falling back to a full rescan: %v", err)
		s.overflow = true
		close(s.done)
		return s, nil
	}
	s.watcher = watcher
	for _, root := range d.roots {
		s.watchTree(root)
	}
	go s.processEvents()
	return s, nil
}

func (s *Session) watchTree(root string) {
	_ = filepath.WalkDir(root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if e.IsDir() {
			if err := s.watcher.Add(path); err != nil {
				logging.Debug(subsystem, "Cannot watch %s: %v", path, err)
				s.mu.Lock()
				s.overflow = true
				s.mu.Unlock()
			}
		}
		return nil
	})
}

func (s *Session) processEvents() {
	defer close(s.done)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.mu.Lock()
			s.touched[event.Name] = true
			s.last = time.Now()
			s.mu.Unlock()
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					s.watchTree(event.Name)
					// files created before the watch was added
					s.markTree(event.Name)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.Debug(subsystem, "Watcher error, falling back to a full rescan: %v", err)
			s.mu.Lock()
			s.overflow = true
			s.mu.Unlock()
		}
	}
}

func (s *Session) markTree(root string) {
	_ = filepath.WalkDir(root, func(path string, e fs.DirEntry, err error) error {
		if err == nil && !e.IsDir() {
			s.mu.Lock()
			s.touched[path] = true
			s.mu.Unlock()
		}
		return nil
	})
}

// End stops recording and returns the sorted paths that were created,
// modified or deleted outside the excluded trees.
func (s *Session) End() ([]string, error) {
	if s.watcher != nil {
		s.settle()
		s.watcher.Close()
	}
	<-s.done

	s.mu.Lock()
	overflow := s.overflow
	touched := s.touched
	s.mu.Unlock()

	var changed []string
	if overflow {
		after, err := hashTrees(s.roots)
		if err != nil {
			return nil, err
		}
		changed = diff(s.before, after)
	} else {
		for path := range touched {
			old, existed := s.before[path]
			sum, err := hashFile(path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				if existed {
					changed = append(changed, path)
				}
			case err != nil:
				// directories and unreadable entries
				continue
			case !existed || sum != old:
				changed = append(changed, path)
			}
		}
	}

	out := changed[:0]
	for _, path := range changed {
		if !s.excluded(path) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Session) settle() {
	start := time.Now()
	for time.Since(start) < settleMax {
		time.Sleep(settleQuiet / 2)
		s.mu.Lock()
		quiet := time.Since(s.last) >= settleQuiet
		s.mu.Unlock()
		if quiet && time.Since(start) >= settleQuiet {
			return
		}
	}
}

func (s *Session) excluded(path string) bool {
	for _, ex := range s.exclude {
		if ex == "" {
			continue
		}
		if path == ex || strings.HasPrefix(path, strings.TrimRight(ex, "/")+"/") {
			return true
		}
	}
	return false
}

func diff(before, after map[string]string) []string {
	var changed []string
	for path, sum := range after {
		if old, ok := before[path]; !ok || old != sum {
			changed = append(changed, path)
		}
	}
	for path := range before {
		if _, ok := after[path]; !ok {
			changed = append(changed, path)
		}
	}
	return changed
}

func hashTrees(roots []string) (map[string]string, error) {
	sums := make(map[string]string)
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, e fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
					return nil
				}
				return err
			}
			if !e.Type().IsRegular() {
				return nil
			}
			sum, err := hashFile(path)
			if err != nil {
				logging.Debug(subsystem, "Skipping %s: %v", path, err)
				return nil
			}
			sums[path] = sum
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot %s: %w", root, err)
		}
	}
	return sums, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
