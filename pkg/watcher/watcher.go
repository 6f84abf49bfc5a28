package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/treeshake/pkg/logging"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	// ChangeTypeSnapshot: the resolver's graph snapshot was rewritten.
	ChangeTypeSnapshot ChangeType = iota
	// ChangeTypeSource: a JS module source changed.
	ChangeTypeSource
	// ChangeTypeStyle: a stylesheet changed.
	ChangeTypeStyle
)

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

var sourceExtensions = map[string]bool{
	".js":  true,
	".jsx": true,
	".mjs": true,
	".cjs": true,
}

// FileWatcher watches a project for snapshot, source, and style changes
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	root     string
	snapshot string
	events   chan ChangeEvent
	done     chan struct{}
	mu       sync.Mutex
}

// NewFileWatcher creates a watcher over a project root. snapshot is the
// graph snapshot file the resolver writes; it may live outside the root.
func NewFileWatcher(root, snapshot string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:  watcher,
		root:     root,
		snapshot: snapshot,
		events:   make(chan ChangeEvent, 100),
		done:     make(chan struct{}),
	}

	return fw, nil
}

// Start begins watching for file changes
func (fw *FileWatcher) Start(ctx context.Context) error {
	if err := fw.watchSources(); err != nil {
		logging.Warn("failed to watch source directories", "error", err)
	}
	if err := fw.watchSnapshot(); err != nil {
		logging.Warn("failed to watch graph snapshot", "error", err)
	}

	logging.Info("started watching project", "path", fw.root)

	go fw.processEvents(ctx)

	return nil
}

// watchSources finds and watches every directory containing JS sources or
// stylesheets under the project root. node_modules is never watched.
func (fw *FileWatcher) watchSources() error {
	sourceDirs := make(map[string]bool)

	err := filepath.Walk(fw.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if info.IsDir() && (info.Name() == "node_modules" || strings.HasPrefix(info.Name(), ".")) {
			if path != fw.root {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(info.Name())
		if sourceExtensions[ext] || ext == ".css" {
			sourceDirs[filepath.Dir(path)] = true
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk project root: %w", err)
	}

	for dir := range sourceDirs {
		if err := fw.watcher.Add(dir); err != nil {
			logging.Warn("failed to watch directory", "path", dir, "error", err)
		}
	}

	logging.Info("monitoring source directories", "count", len(sourceDirs))
	return nil
}

// watchSnapshot watches the directory containing the graph snapshot, since
// resolvers typically replace the file rather than rewrite it in place.
func (fw *FileWatcher) watchSnapshot() error {
	if fw.snapshot == "" {
		return nil
	}
	dir := filepath.Dir(fw.snapshot)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logging.Info("snapshot directory does not exist yet, skipping", "path", dir)
		return nil
	}
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch snapshot directory: %w", err)
	}
	logging.Info("monitoring graph snapshot", "path", fw.snapshot)
	return nil
}

// processEvents classifies and batches file system events
func (fw *FileWatcher) processEvents(ctx context.Context) {
	var snapshots []string
	var sources []string
	var styles []string

	flushTimer := time.NewTimer(100 * time.Millisecond)
	flushTimer.Stop()

	flush := func() {
		if len(snapshots) > 0 {
			fw.events <- ChangeEvent{
				Type:      ChangeTypeSnapshot,
				Paths:     snapshots,
				Timestamp: time.Now(),
			}
			snapshots = nil
		}
		if len(sources) > 0 {
			fw.events <- ChangeEvent{
				Type:      ChangeTypeSource,
				Paths:     sources,
				Timestamp: time.Now(),
			}
			sources = nil
		}
		if len(styles) > 0 {
			fw.events <- ChangeEvent{
				Type:      ChangeTypeStyle,
				Paths:     styles,
				Timestamp: time.Now(),
			}
			styles = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			fw.watcher.Close()
			close(fw.events)
			close(fw.done)
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			ext := filepath.Ext(event.Name)
			switch {
			case fw.snapshot != "" && event.Name == fw.snapshot:
				snapshots = append(snapshots, event.Name)
				flushTimer.Reset(100 * time.Millisecond)
			case sourceExtensions[ext]:
				sources = append(sources, event.Name)
				flushTimer.Reset(100 * time.Millisecond)
			case ext == ".css":
				styles = append(styles, event.Name)
				flushTimer.Reset(100 * time.Millisecond)
			}

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop stops the file watcher
func (fw *FileWatcher) Stop() error {
	close(fw.done)
	return fw.watcher.Close()
}
