package source

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/j-veylop/wafer-yield/internal/models"
	"github.com/j-veylop/wafer-yield/internal/yield"
)

// staticSource serves fixed rows.
type staticSource struct {
	header []string
	rows   [][]string
	err    error
}

func (s staticSource) ReadRows(context.Context) ([]string, [][]string, error) {
	return s.header, s.rows, s.err
}

func scenarioRows() [][]string {
	return [][]string{
		{"W1", "1", "11", "10.0", "5.0"},
		{"W1", "1", "11", "20.0", "7.0"},
		{"W1", "2", "21", "3.0", "3.0"},
		{"W2", "1", "12", "5.0", "5.0"},
	}
}

func scenarioRecords() []models.DieRecord {
	return []models.DieRecord{
		{Wafer: "W1", Bin: 1, SubBin: 11, Reading1: 10, Reading2: 5},
		{Wafer: "W1", Bin: 1, SubBin: 11, Reading1: 20, Reading2: 7},
		{Wafer: "W1", Bin: 2, SubBin: 21, Reading1: 3, Reading2: 3},
		{Wafer: "W2", Bin: 1, SubBin: 12, Reading1: 5, Reading2: 5},
	}
}

func TestDecode(t *testing.T) {
	rows := append(scenarioRows(), []string{"", " ", ""}, nil)

	var got []models.DieRecord
	err := Decode(Header, rows, func(rec models.DieRecord) error {
		got = append(got, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := cmp.Diff(scenarioRecords(), got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_SchemaViolation(t *testing.T) {
	tests := []struct {
		name   string
		header []string
	}{
		{"empty", nil},
		{"reordered", []string{"Wafer", "Sub_Bin", "Bin", "Reading_1", "Reading_2"}},
		{"missing column", []string{"Wafer", "Bin", "Sub_Bin", "Reading_1"}},
		{"extra column", []string{"Wafer", "Bin", "Sub_Bin", "Reading_1", "Reading_2", "Lot"}},
		{"case", []string{"wafer", "bin", "sub_bin", "reading_1", "reading_2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			err := Decode(tt.header, scenarioRows(), func(models.DieRecord) error {
				called = true
				return nil
			})
			if !errors.Is(err, ErrSchemaViolation) {
				t.Errorf("expected ErrSchemaViolation, got %v", err)
			}
			if called {
				t.Error("no record should be decoded after a schema violation")
			}
		})
	}
}

func TestDecode_InvalidRecord(t *testing.T) {
	tests := []struct {
		name    string
		row     []string
		wantMsg string
	}{
		{"short row", []string{"W1", "1", "11"}, "expected 5 fields"},
		{"empty wafer", []string{" ", "1", "11", "1", "1"}, "Wafer"},
		{"text bin", []string{"W1", "x", "11", "1", "1"}, "Bin"},
		{"fractional sub-bin", []string{"W1", "1", "1.5", "1", "1"}, "Sub_Bin"},
		{"text reading", []string{"W1", "1", "11", "n/a", "1"}, "Reading_1"},
		{"NaN reading", []string{"W1", "1", "11", "NaN", "1"}, "Reading_1"},
		{"infinite reading", []string{"W1", "1", "11", "1", "-Inf"}, "Reading_2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := [][]string{scenarioRows()[0], tt.row}
			err := Decode(Header, rows, func(models.DieRecord) error { return nil })
			if !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("expected ErrInvalidRecord, got %v", err)
			}
			if !strings.Contains(err.Error(), "row 3") {
				t.Errorf("error should name row 3: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error should mention %q: %v", tt.wantMsg, err)
			}
		})
	}
}

func TestDecode_CallbackError(t *testing.T) {
	stop := errors.New("stop")
	err := Decode(Header, scenarioRows(), func(models.DieRecord) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("expected callback error, got %v", err)
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"3", 3, false},
		{" 42 ", 42, false},
		{"3.0", 3, false},
		{"-7", -7, false},
		{"1e2", 100, false},
		{"3.5", 0, true},
		{"", 0, true},
		{"bin", 0, true},
	}
	for _, tt := range tests {
		got, err := parseInt(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseInt(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseInt(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	src := staticSource{header: Header, rows: scenarioRows()}
	ix := yield.NewIndex()

	n, err := Load(context.Background(), src, ix)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if n != 4 || ix.Len() != 4 {
		t.Errorf("Load returned %d, index holds %d, want 4", n, ix.Len())
	}
	if diff := cmp.Diff([]string{"W1", "W2"}, ix.Wafers()); diff != "" {
		t.Errorf("wafers mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_SourceError(t *testing.T) {
	boom := errors.New("boom")
	if _, err := Load(context.Background(), staticSource{err: boom}, yield.NewIndex()); !errors.Is(err, boom) {
		t.Errorf("expected source error, got %v", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ix := yield.NewIndex()
	_, err := Load(ctx, staticSource{header: Header, rows: scenarioRows()}, ix)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if ix.Len() != 0 {
		t.Errorf("canceled load ingested %d records", ix.Len())
	}
}

func TestReadAll(t *testing.T) {
	got, err := ReadAll(context.Background(), staticSource{header: Header, rows: scenarioRows()})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if diff := cmp.Diff(scenarioRecords(), got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		path string
		want Source
	}{
		{"dies.csv", &CSVSource{Path: "dies.csv"}},
		{"Wafer Yield.xlsx", &XLSXSource{Path: "Wafer Yield.xlsx", Sheet: "Raw Data"}},
		{"BOOK.XLSM", &XLSXSource{Path: "BOOK.XLSM", Sheet: "Raw Data"}},
		{"yield.db", &SQLiteSource{Path: "yield.db"}},
		{"yield.sqlite3", &SQLiteSource{Path: "yield.sqlite3"}},
	}
	for _, tt := range tests {
		got, err := Open(tt.path, "Raw Data")
		if err != nil {
			t.Errorf("Open(%q) failed: %v", tt.path, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Open(%q) mismatch (-want +got):\n%s", tt.path, diff)
		}
	}

	if _, err := Open("dies.json", ""); !errors.Is(err, ErrUnsupportedInput) {
		t.Errorf("expected ErrUnsupportedInput, got %v", err)
	}
}
