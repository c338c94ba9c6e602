// Package services orchestrates report generation for the CLI and the viewer.
package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/gen2brain/beeep"
	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/wafer-yield/internal/config"
	"github.com/j-veylop/wafer-yield/internal/db"
	"github.com/j-veylop/wafer-yield/internal/logger"
	"github.com/j-veylop/wafer-yield/internal/report"
	"github.com/j-veylop/wafer-yield/internal/services/watcher"
	"github.com/j-veylop/wafer-yield/internal/source"
	"github.com/j-veylop/wafer-yield/internal/yield"
)

type (
	// ReportsUpdatedEvent is emitted after reports were generated and written.
	ReportsUpdatedEvent struct {
		Snapshot *Snapshot
		Written  []string
	}

	// InputChangedEvent is emitted when the watched input file changed.
	InputChangedEvent struct {
		Path string
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (ReportsUpdatedEvent) isServiceEvent() {}
func (InputChangedEvent) isServiceEvent()   {}
func (ErrorEvent) isServiceEvent()          {}

// ErrOutputIsInput is returned by Watch when reports would be written over
// the watched input.
var ErrOutputIsInput = errors.New("output path is the watched input path")

// Manager runs the load, aggregate and publish batch and routes events.
type Manager struct {
	mu          sync.RWMutex
	cfg         *config.Config
	specs       []report.TableSpec
	subscribers []chan<- ServiceEvent
	last        *Snapshot
	notify      func(title, body string) error
	closed      bool
}

// NewManager creates a manager for a resolved configuration.
func NewManager(cfg *config.Config) (*Manager, error) {
	if cfg.Profile == nil {
		if err := cfg.Resolve(); err != nil {
			return nil, err
		}
	}
	specs, err := cfg.Profile.Specs()
	if err != nil {
		return nil, fmt.Errorf("invalid report profile: %w", err)
	}

	return &Manager{
		cfg:   cfg,
		specs: specs,
		notify: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
	}, nil
}

// Config returns the configuration the manager runs with.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Specs returns the tables of the active profile in output order.
func (m *Manager) Specs() []report.TableSpec {
	return m.specs
}

// Generate loads the input and computes every profile table. Tables are
// computed concurrently over the completed index.
func (m *Manager) Generate(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	src, err := source.Open(m.cfg.InputPath, m.cfg.InputSheet)
	if err != nil {
		return nil, err
	}

	ix := yield.NewIndex()
	n, err := source.Load(ctx, src, ix)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", m.cfg.InputPath, err)
	}

	agg := yield.NewAggregator(ix, m.cfg.ZeroTotalPolicy)
	tables := make([]TableResult, len(m.specs))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, spec := range m.specs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			res, err := agg.Compute(spec.Kind)
			if err != nil {
				return fmt.Errorf("table %s: %w", spec.Name, err)
			}
			tables[i] = TableResult{Spec: spec, Result: res}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		InputPath:   m.cfg.InputPath,
		Records:     n,
		Wafers:      ix.Wafers(),
		Catalog:     agg.Catalog(),
		Tables:      tables,
		Aggregator:  agg,
		GeneratedAt: time.Now(),
		Duration:    time.Since(start),
	}

	m.mu.Lock()
	m.last = snap
	m.mu.Unlock()

	logger.Info("reports computed",
		"input", m.cfg.InputPath,
		"records", n,
		"wafers", len(snap.Wafers),
		"tables", len(tables),
		"duration", snap.Duration)
	return snap, nil
}

// Publish writes the snapshot's tables to the configured output in
// profile order and returns the table names written.
func (m *Manager) Publish(ctx context.Context, snap *Snapshot) ([]string, error) {
	sink, err := m.openSink(ctx)
	if err != nil {
		return nil, err
	}

	written := make([]string, 0, len(snap.Tables))
	for _, t := range snap.Tables {
		if err := report.Write(sink, t.Spec, snap.Catalog, t.Result); err != nil {
			if abortErr := sink.Abort(); abortErr != nil {
				logger.Warn("failed to discard partial output", "output", m.cfg.OutputPath, "error", abortErr)
			}
			return nil, err
		}
		written = append(written, report.GeneratedName(t.Spec.Name))
		logger.Debug("table written", "table", t.Spec.Name, "rows", t.Result.Len())
	}

	if err := sink.Close(); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", m.cfg.OutputPath, err)
	}
	return written, nil
}

// openSink opens the output named by the configuration. An xlsx output is
// seeded with the input workbook so the raw data sheet is carried along.
func (m *Manager) openSink(ctx context.Context) (report.Sink, error) {
	switch m.cfg.OutputFormat {
	case config.FormatXLSX:
		seed := ""
		if src, err := source.Open(m.cfg.InputPath, m.cfg.InputSheet); err == nil {
			if _, ok := src.(*source.XLSXSource); ok {
				seed = m.cfg.InputPath
			}
		}
		return report.NewXLSXSink(m.cfg.OutputPath, seed)

	case config.FormatCSV:
		return report.NewCSVSink(m.cfg.OutputPath)

	case config.FormatSQLite:
		store, err := db.New(m.cfg.OutputPath)
		if err != nil {
			return nil, err
		}
		sink, err := store.NewReportSink(ctx)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		return &storeSink{ReportSink: sink, store: store}, nil

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownFormat, m.cfg.OutputFormat)
	}
}

// storeSink closes the database once its report transaction is done.
type storeSink struct {
	*db.ReportSink
	store *db.DB
}

func (s *storeSink) Close() error {
	return errors.Join(s.ReportSink.Close(), s.store.Close())
}

func (s *storeSink) Abort() error {
	return errors.Join(s.ReportSink.Abort(), s.store.Close())
}

// Run generates and publishes all reports, broadcasting the outcome.
func (m *Manager) Run(ctx context.Context) (*Snapshot, []string, error) {
	snap, err := m.Generate(ctx)
	if err != nil {
		m.broadcast(ErrorEvent{Service: "report", Error: err})
		return nil, nil, err
	}

	written, err := m.Publish(ctx, snap)
	if err != nil {
		m.broadcast(ErrorEvent{Service: "output", Error: err})
		return snap, nil, err
	}

	logger.Info("reports written", "output", m.cfg.OutputPath, "format", m.cfg.OutputFormat, "tables", len(written))
	m.broadcast(ReportsUpdatedEvent{Snapshot: snap, Written: written})
	return snap, written, nil
}

// Import copies the input records into the sqlite store, replacing what
// was stored before, and returns the number of records the store holds.
func (m *Manager) Import(ctx context.Context) (int, error) {
	src, err := source.Open(m.cfg.InputPath, m.cfg.InputSheet)
	if err != nil {
		return 0, err
	}
	records, err := source.ReadAll(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", m.cfg.InputPath, err)
	}

	store, err := db.New(m.cfg.DatabasePath)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	if err := store.ReplaceDieRecords(ctx, records); err != nil {
		return 0, err
	}
	if err := store.Vacuum(ctx); err != nil {
		logger.Warn("database not compacted", "db", store.Path(), "error", err)
	}

	stored, err := store.CountDieRecords(ctx)
	if err != nil {
		return 0, err
	}
	logger.Info("records imported", "input", m.cfg.InputPath, "db", store.Path(), "records", stored)
	return stored, nil
}

// Watch runs the batch once and again after every change to the input,
// until ctx is canceled. Failed runs are reported as events and do not
// stop the watch.
func (m *Manager) Watch(ctx context.Context) error {
	if samePath(m.cfg.InputPath, m.cfg.OutputPath) {
		return ErrOutputIsInput
	}

	w, err := watcher.New(m.cfg.InputPath, m.cfg.WatchDebounce)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if _, _, err := m.Run(ctx); err != nil {
		logger.Error("initial report run failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events():
			if !ok {
				return nil
			}
			switch event.Type {
			case watcher.EventChanged:
				m.broadcast(InputChangedEvent{Path: event.Path})
				snap, _, err := m.Run(ctx)
				if err != nil {
					logger.Error("report run failed", "error", err)
				}
				m.notifyRun(snap, err)
			case watcher.EventError:
				logger.Warn("watcher error", "error", event.Error)
				m.broadcast(ErrorEvent{Service: "watcher", Error: event.Error})
			}
		}
	}
}

// notifyRun raises a desktop notification for a watch regeneration.
func (m *Manager) notifyRun(snap *Snapshot, runErr error) {
	if !m.cfg.Notify {
		return
	}

	title := "Wafer yield reports updated"
	body := ""
	if runErr != nil {
		title = "Wafer yield report failed"
		body = runErr.Error()
	} else if snap != nil {
		body = fmt.Sprintf("%s dies on %s wafers written to %s",
			humanize.Comma(int64(snap.Records)),
			humanize.Comma(int64(len(snap.Wafers))),
			filepath.Base(m.cfg.OutputPath))
	}

	if err := m.notify(title, body); err != nil {
		logger.Warn("desktop notification failed", "error", err)
	}
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

// Last returns the most recent snapshot, or nil.
func (m *Manager) Last() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Close closes all subscriber channels.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for _, sub := range m.subscribers {
		close(sub)
	}
	m.subscribers = nil
	return nil
}
