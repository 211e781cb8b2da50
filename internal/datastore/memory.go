package datastore

import (
	"context"
	"sync"
)

// MemoryStore keeps tables in process memory. It backs local development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*Table
	reads  map[string]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*Table), reads: make(map[string]int)}
}

// ReadTable returns a deep copy of the table.
func (s *MemoryStore) ReadTable(ctx context.Context, table string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		return nil, ErrTableNotFound
	}
	s.reads[table]++
	out := &Table{Name: t.Name, Header: cloneRow(t.Header), Rows: make([][]string, len(t.Rows))}
	for i, row := range t.Rows {
		out.Rows[i] = cloneRow(row)
	}
	return out, nil
}

// Reads reports how many times a table was read; tests use it to observe cache behaviour.
func (s *MemoryStore) Reads(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads[table]
}

func (s *MemoryStore) AppendRow(ctx context.Context, table string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		return ErrTableNotFound
	}
	id, err := rowID(t.Header, row)
	if err != nil {
		return err
	}
	if s.find(t, id) >= 0 {
		return ErrDuplicateRow
	}
	t.Rows = append(t.Rows, cloneRow(row))
	return nil
}

func (s *MemoryStore) UpdateRow(ctx context.Context, table, id string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		return ErrTableNotFound
	}
	i := s.find(t, id)
	if i < 0 {
		return ErrRowNotFound
	}
	t.Rows[i] = cloneRow(row)
	return nil
}

func (s *MemoryStore) DeleteRow(ctx context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		return ErrTableNotFound
	}
	i := s.find(t, id)
	if i < 0 {
		return ErrRowNotFound
	}
	t.Rows = append(t.Rows[:i], t.Rows[i+1:]...)
	return nil
}

func (s *MemoryStore) EnsureTable(ctx context.Context, table string, header []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[table]; ok {
		return cloneRow(t.Header), nil
	}
	if indexOf(header, IDColumn) < 0 {
		return nil, ErrNoIDColumn
	}
	s.tables[table] = &Table{Name: table, Header: cloneRow(header)}
	return cloneRow(header), nil
}

func (s *MemoryStore) find(t *Table, id string) int {
	idx := indexOf(t.Header, IDColumn)
	if idx < 0 {
		return -1
	}
	for i, row := range t.Rows {
		if idx < len(row) && row[idx] == id {
			return i
		}
	}
	return -1
}
