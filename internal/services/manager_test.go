package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/j-veylop/wafer-yield/internal/config"
	"github.com/j-veylop/wafer-yield/internal/db"
	"github.com/j-veylop/wafer-yield/internal/models"
	"github.com/j-veylop/wafer-yield/internal/source"
	"github.com/j-veylop/wafer-yield/internal/yield"
)

const scenarioCSV = "Wafer,Bin,Sub_Bin,Reading_1,Reading_2\n" +
	"W1,1,11,10.0,5.0\n" +
	"W1,1,11,20.0,7.0\n" +
	"W1,2,21,3.0,3.0\n" +
	"W2,1,12,5.0,5.0\n"

func writeInput(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "dies.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestManager(t *testing.T, input, output string) *Manager {
	t.Helper()
	cfg := &config.Config{
		InputPath:     input,
		InputSheet:    "Raw Data",
		OutputPath:    output,
		DatabasePath:  filepath.Join(t.TempDir(), "store", "yield.db"),
		WatchDebounce: 20 * time.Millisecond,
	}
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestNewManager(t *testing.T) {
	mgr := newTestManager(t, "dies.csv", "out.xlsx")

	if mgr.Config().OutputFormat != config.FormatXLSX {
		t.Errorf("OutputFormat = %q, want xlsx", mgr.Config().OutputFormat)
	}
	if got := len(mgr.Specs()); got != 6 {
		t.Errorf("expected the 6 default tables, got %d", got)
	}
	if mgr.Last() != nil {
		t.Error("Last() should be nil before the first run")
	}
}

func TestNewManager_InvalidProfile(t *testing.T) {
	cfg := &config.Config{OutputPath: "out.xlsx", Profile: &config.Profile{}}
	if _, err := NewManager(cfg); err == nil {
		t.Error("expected error for an empty profile")
	}
}

func TestManager_Generate(t *testing.T) {
	dir := t.TempDir()
	mgr := newTestManager(t, writeInput(t, dir, scenarioCSV), filepath.Join(dir, "out"))

	snap, err := mgr.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if snap.Records != 4 {
		t.Errorf("Records = %d, want 4", snap.Records)
	}
	if diff := cmp.Diff([]string{"W1", "W2"}, snap.Wafers); diff != "" {
		t.Errorf("wafers mismatch (-want +got):\n%s", diff)
	}
	if len(snap.Tables) != 6 {
		t.Fatalf("expected 6 tables, got %d", len(snap.Tables))
	}
	for i, table := range snap.Tables {
		if table.Spec != mgr.Specs()[i] {
			t.Errorf("table %d out of profile order: %v", i, table.Spec)
		}
		if table.Result.Kind != table.Spec.Kind {
			t.Errorf("table %s holds %s rows", table.Spec.Name, table.Result.Kind)
		}
	}

	res, err := snap.Result(models.ReportBinStats)
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	want := []models.StatsRow{
		{Wafer: "W1", Bin: 1, Count: 2, Mean: 15, Max: 7},
		{Wafer: "W1", Bin: 2, Count: 1, Mean: 3, Max: 3},
		{Wafer: "W2", Bin: 1, Count: 1, Mean: 5, Max: 5},
	}
	if diff := cmp.Diff(want, res.Stats); diff != "" {
		t.Errorf("bin stats mismatch (-want +got):\n%s", diff)
	}
	if mgr.Last() != snap {
		t.Error("Last() should return the generated snapshot")
	}
}

func TestSnapshot_ResultOutsideProfile(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		InputPath:  writeInput(t, dir, scenarioCSV),
		OutputPath: filepath.Join(dir, "out"),
		Profile: &config.Profile{Tables: []config.TableConfig{
			{Kind: "bin_count", Name: "counts"},
		}},
	}
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	snap, err := mgr.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	res, err := snap.Result(models.ReportSubBinPercent)
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if res.Kind != models.ReportSubBinPercent || len(res.Counts) != 2 {
		t.Errorf("unexpected on-demand result %+v", res)
	}
}

func TestManager_GenerateSchemaViolation(t *testing.T) {
	dir := t.TempDir()
	mgr := newTestManager(t, writeInput(t, dir, "Wafer,Bin\nW1,1\n"), filepath.Join(dir, "out"))

	ch, _ := mgr.Subscribe()

	_, _, err := mgr.Run(context.Background())
	if !errors.Is(err, source.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}

	select {
	case e := <-ch:
		ev, ok := e.(ErrorEvent)
		if !ok || ev.Service != "report" {
			t.Errorf("expected report ErrorEvent, got %#v", e)
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for ErrorEvent")
	}
}

func TestManager_RunCSV(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	mgr := newTestManager(t, writeInput(t, dir, scenarioCSV), out)

	ch, _ := mgr.Subscribe()

	_, written, err := mgr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	wantNames := []string{"df1-gen*", "df1-1-gen*", "df2-gen*", "df2-1-gen*", "df3-gen*", "df3-1-gen*"}
	if diff := cmp.Diff(wantNames, written); diff != "" {
		t.Errorf("written mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(filepath.Join(out, "df1-1-gen+.csv"))
	if err != nil {
		t.Fatalf("percent table not written: %v", err)
	}
	want := "\n\nCount - Bin,Bin\nWafer,1,2,Total\nW1,66.67%,33.33%,100.00%\nW2,100.00%,0.00%,100.00%\n"
	if string(data) != want {
		t.Errorf("df1-1-gen content = %q, want %q", data, want)
	}

	select {
	case e := <-ch:
		ev, ok := e.(ReportsUpdatedEvent)
		if !ok {
			t.Fatalf("expected ReportsUpdatedEvent, got %#v", e)
		}
		if len(ev.Written) != 6 || ev.Snapshot == nil {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for ReportsUpdatedEvent")
	}
}

func TestManager_PublishFailureKeepsOutput(t *testing.T) {
	tests := []struct {
		name   string
		output string
		file   string
	}{
		{"xlsx", "out.xlsx", "out.xlsx"},
		{"csv", "out", filepath.Join("out", "df1-gen+.csv")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			mgr := newTestManager(t, writeInput(t, dir, scenarioCSV), filepath.Join(dir, tt.output))

			snap, _, err := mgr.Run(context.Background())
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			before, err := os.ReadFile(filepath.Join(dir, tt.file))
			if err != nil {
				t.Fatal(err)
			}

			// The second table carries rows of the wrong kind, so the
			// first table is written before the failure.
			broken := *snap
			broken.Tables = append([]TableResult(nil), snap.Tables...)
			broken.Tables[1].Result = snap.Tables[0].Result
			if _, err := mgr.Publish(context.Background(), &broken); err == nil {
				t.Fatal("expected Publish to fail")
			}

			after, err := os.ReadFile(filepath.Join(dir, tt.file))
			if err != nil {
				t.Fatal(err)
			}
			if string(before) != string(after) {
				t.Errorf("%s changed after a failed publish", tt.file)
			}
			if tt.name == "csv" {
				entries, _ := os.ReadDir(filepath.Join(dir, "out"))
				for _, e := range entries {
					if strings.HasPrefix(e.Name(), ".") {
						t.Errorf("partial file %s left behind", e.Name())
					}
				}
			}
		})
	}
}

func TestManager_RunXLSXSeeded(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Wafer Yield.xlsx")

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "Raw Data"); err != nil {
		t.Fatal(err)
	}
	rows := [][]any{
		{"Wafer", "Bin", "Sub_Bin", "Reading_1", "Reading_2"},
		{"W1", 1, 11, 10.0, 5.0},
		{"W2", 1, 12, 5.0, 5.0},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Raw Data", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(input); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	out := filepath.Join(dir, "out.xlsx")
	mgr := newTestManager(t, input, out)
	if _, _, err := mgr.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	book, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer book.Close()

	want := []string{"Raw Data", "df1-gen#", "df1-1-gen#", "df2-gen#", "df2-1-gen#", "df3-gen#", "df3-1-gen#"}
	if diff := cmp.Diff(want, book.GetSheetList()); diff != "" {
		t.Errorf("sheets mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_RunSQLite(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "reports.db")
	mgr := newTestManager(t, writeInput(t, dir, scenarioCSV), out)

	if _, _, err := mgr.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	store, err := db.New(out)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	names, err := store.ReportTableNames(context.Background())
	if err != nil {
		t.Fatalf("ReportTableNames failed: %v", err)
	}
	if len(names) != 6 {
		t.Errorf("expected 6 stored tables, got %v", names)
	}
	rows, err := store.ReportRows(context.Background(), "df3-gen*")
	if err != nil {
		t.Fatalf("ReportRows failed: %v", err)
	}
	if diff := cmp.Diff([]any{"W1", 1.0, 15.0, 7.0}, rows[3]); diff != "" {
		t.Errorf("first stats row mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_Import(t *testing.T) {
	dir := t.TempDir()
	mgr := newTestManager(t, writeInput(t, dir, scenarioCSV), filepath.Join(dir, "out"))

	n, err := mgr.Import(context.Background())
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if n != 4 {
		t.Errorf("Import returned %d, want 4", n)
	}

	// The store is itself a valid input.
	mgr.cfg.InputPath = mgr.cfg.DatabasePath
	snap, err := mgr.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate from store failed: %v", err)
	}
	if snap.Records != 4 {
		t.Errorf("Records = %d, want 4", snap.Records)
	}
}

func TestManager_ImportReplacesStore(t *testing.T) {
	dir := t.TempDir()
	mgr := newTestManager(t, writeInput(t, dir, scenarioCSV), filepath.Join(dir, "out"))
	if _, err := mgr.Import(context.Background()); err != nil {
		t.Fatalf("first Import failed: %v", err)
	}

	smaller := "Wafer,Bin,Sub_Bin,Reading_1,Reading_2\nW9,1,11,1.0,1.0\n"
	if err := os.WriteFile(mgr.cfg.InputPath, []byte(smaller), 0o600); err != nil {
		t.Fatal(err)
	}
	n, err := mgr.Import(context.Background())
	if err != nil {
		t.Fatalf("second Import failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Import returned %d stored records, want 1", n)
	}

	store, err := db.New(mgr.cfg.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if got, err := store.CountDieRecords(context.Background()); err != nil || got != 1 {
		t.Errorf("CountDieRecords = %d, %v; want 1", got, err)
	}
}

func TestManager_WatchRejectsOutputAsInput(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, scenarioCSV)
	mgr := newTestManager(t, input, input)

	if err := mgr.Watch(context.Background()); !errors.Is(err, ErrOutputIsInput) {
		t.Errorf("expected ErrOutputIsInput, got %v", err)
	}
}

func TestManager_Watch(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, scenarioCSV)
	mgr := newTestManager(t, input, filepath.Join(dir, "out"))

	var (
		mu      sync.Mutex
		notices []string
	)
	mgr.cfg.Notify = true
	mgr.notify = func(title, body string) error {
		mu.Lock()
		defer mu.Unlock()
		notices = append(notices, title)
		return nil
	}

	ch, _ := mgr.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Watch(ctx) }()

	waitForReports := func(wantRecords int) {
		t.Helper()
		timeout := time.After(3 * time.Second)
		for {
			select {
			case e := <-ch:
				if ev, ok := e.(ReportsUpdatedEvent); ok {
					if ev.Snapshot.Records != wantRecords {
						t.Fatalf("Records = %d, want %d", ev.Snapshot.Records, wantRecords)
					}
					return
				}
			case <-timeout:
				t.Fatal("timeout waiting for ReportsUpdatedEvent")
			}
		}
	}

	waitForReports(4)

	if err := os.WriteFile(input, []byte(scenarioCSV+"W3,2,22,1.0,1.0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	waitForReports(5)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(notices) == 0 || notices[0] != "Wafer yield reports updated" {
		t.Errorf("expected an update notification, got %v", notices)
	}
}

func TestManager_NotifyDisabled(t *testing.T) {
	mgr := newTestManager(t, "dies.csv", "out")
	called := false
	mgr.notify = func(string, string) error {
		called = true
		return nil
	}
	mgr.notifyRun(nil, errors.New("boom"))
	if called {
		t.Error("notification sent with notifications disabled")
	}
}

func TestManager_ZeroTotalPolicy(t *testing.T) {
	dir := t.TempDir()
	mgr := newTestManager(t, writeInput(t, dir, scenarioCSV), filepath.Join(dir, "out"))
	mgr.cfg.ZeroTotalPolicy = yield.ZeroTotalError

	// Every wafer of a loaded index has dies, so the strict policy passes.
	if _, err := mgr.Generate(context.Background()); err != nil {
		t.Errorf("Generate failed: %v", err)
	}
}

func TestManager_Subscription(t *testing.T) {
	mgr := newTestManager(t, "dies.csv", "out")

	ch, cmd := mgr.Subscribe()
	if ch == nil {
		t.Error("Subscribe returned nil channel")
	}
	if cmd == nil {
		t.Error("Subscribe returned nil command")
	}

	mgr.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Channel should be closed")
		}
	default:
		t.Error("Channel should be closed after Unsubscribe")
	}
}

func TestManager_Broadcast(t *testing.T) {
	mgr := newTestManager(t, "dies.csv", "out")

	ch, _ := mgr.Subscribe()
	defer mgr.Unsubscribe(ch)

	event := InputChangedEvent{Path: "dies.csv"}
	mgr.broadcast(event)

	select {
	case e := <-ch:
		if e != event {
			t.Errorf("Got event %v, want %v", e, event)
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan ServiceEvent, 1)
	ch <- ErrorEvent{Service: "watcher"}

	msg := WaitForEvent(ch)()
	if _, ok := msg.(ErrorEvent); !ok {
		t.Errorf("expected ErrorEvent, got %T", msg)
	}
}

func TestManager_Close(t *testing.T) {
	mgr := newTestManager(t, "dies.csv", "out")
	ch, _ := mgr.Subscribe()

	if err := mgr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed")
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
