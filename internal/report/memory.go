package report

import "sync"

// MemorySink records tables in memory. It is used by tests and by the
// interactive viewer.
type MemorySink struct {
	mu      sync.Mutex
	tables  map[string]*MemoryTable
	order   []string
	closed  bool
	aborted bool
}

// MemoryTable is a recorded table.
type MemoryTable struct {
	Name string
	Rows [][]any
}

// NewMemorySink creates an empty recorder.
func NewMemorySink() *MemorySink {
	return &MemorySink{tables: make(map[string]*MemoryTable)}
}

// BeginTable starts or clears a table.
func (s *MemorySink) BeginTable(name string) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		t = &MemoryTable{Name: name}
		s.tables[name] = t
		s.order = append(s.order, name)
	}
	t.Rows = nil
	return &memoryTable{sink: s, table: t}, nil
}

// Close marks the sink closed.
func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Abort marks the sink closed and aborted. Recorded tables are kept for
// inspection.
func (s *MemorySink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.aborted = true
	return nil
}

// Aborted reports whether Abort has been called.
func (s *MemorySink) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Closed reports whether Close or Abort has been called.
func (s *MemorySink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Names returns table names in creation order.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Table returns a recorded table, or nil.
func (s *MemorySink) Table(name string) *MemoryTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[name]
}

type memoryTable struct {
	sink  *MemorySink
	table *MemoryTable
}

func (t *memoryTable) AppendRow(values ...any) error {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	t.table.Rows = append(t.table.Rows, append([]any(nil), values...))
	return nil
}
