// Package watcher reports debounced changes to a single file.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/wafer-yield/internal/logger"
)

// Event represents a watcher event.
type Event struct {
	Type  EventType
	Path  string
	Error error
}

// EventType defines the type of watcher event.
type EventType int

const (
	// EventChanged is sent once a burst of writes to the file has settled.
	EventChanged EventType = iota
	// EventError carries an error from the underlying watcher.
	EventError
)

// DefaultDebounce is used when a non-positive debounce interval is given.
const DefaultDebounce = 100 * time.Millisecond

// Service watches one file. Spreadsheet programs replace files on save
// rather than writing them in place, so the parent directory is watched
// and events are filtered by file name.
type Service struct {
	mu            sync.Mutex
	filePath      string
	debounce      time.Duration
	watcher       *fsnotify.Watcher
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
	closeOnce     sync.Once
}

// New starts watching filePath.
func New(filePath string, debounce time.Duration) (*Service, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory (to catch file replacement)
	dir := filepath.Dir(filePath)
	if err := watcher.Add(dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s := &Service{
		filePath:  filePath,
		debounce:  debounce,
		watcher:   watcher,
		eventChan: make(chan Event, 10),
		stopChan:  make(chan struct{}),
	}
	go s.watchLoop()

	logger.Debug("watching input", "path", filePath, "debounce", debounce)
	return s, nil
}

// Events returns the event channel.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// watchLoop handles file system events with debouncing.
func (s *Service) watchLoop() {
	name := filepath.Base(s.filePath)

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != name {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				s.schedule()
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Path: s.filePath, Error: err})

		case <-s.stopChan:
			return
		}
	}
}

// schedule restarts the debounce timer.
func (s *Service) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.debounce, func() {
		select {
		case <-s.stopChan:
			return
		default:
		}
		s.sendEvent(Event{Type: EventChanged, Path: s.filePath})
	})
}

// sendEvent sends an event, dropping the oldest one when the channel is full.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the watcher.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)

		s.mu.Lock()
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
		}
		s.mu.Unlock()

		err = s.watcher.Close()
	})
	return err
}
