package kv

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is a mutex-guarded in-memory Store. It backs tests and the
// STORE_BACKEND=memory development mode, mirroring the semantics of the
// Postgres implementation including versions and keyset cursors.
type Memory struct {
	mu     sync.Mutex
	tables map[string]map[string]memoryRow
}

type memoryRow struct {
	value   []byte
	version int64
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string]map[string]memoryRow),
	}
}

func (s *Memory) table(name string) map[string]memoryRow {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[string]memoryRow)
		s.tables[name] = t
	}
	return t
}

// Get returns the value and version for key, or ErrNotFound
func (s *Memory) Get(ctx context.Context, table, key string) ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.table(table)[key]
	if !ok {
		return nil, 0, ErrNotFound
	}

	value := make([]byte, len(row.value))
	copy(value, row.value)
	return value, row.version, nil
}

// Put unconditionally writes value under key
func (s *Memory) Put(ctx context.Context, table, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	row := t[key]
	t[key] = memoryRow{value: clone(value), version: row.version + 1}
	return nil
}

// PutVersion writes value only if the current version equals expected
func (s *Memory) PutVersion(ctx context.Context, table, key string, value []byte, expected int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	row, ok := t[key]

	if expected == 0 {
		if ok {
			return false, nil
		}
		t[key] = memoryRow{value: clone(value), version: 1}
		return true, nil
	}

	if !ok || row.version != expected {
		return false, nil
	}
	t[key] = memoryRow{value: clone(value), version: row.version + 1}
	return true, nil
}

// Delete removes key; absent keys are not an error
func (s *Memory) Delete(ctx context.Context, table, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.table(table), key)
	return nil
}

// Scan returns one page of entries in ascending key order
func (s *Memory) Scan(ctx context.Context, table string, r Range) ([]Entry, string, error) {
	if r.Limit < 1 {
		return nil, "", fmt.Errorf("scan %s: limit must be positive", table)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var entries []Entry
	for _, k := range keys {
		if r.Cursor != "" && k <= r.Cursor {
			continue
		}
		if r.Cursor == "" && k < r.Start {
			continue
		}
		if r.End != "" && k >= r.End {
			break
		}
		row := t[k]
		entries = append(entries, Entry{Key: k, Value: clone(row.value), Version: row.version})
		if len(entries) == r.Limit {
			break
		}
	}

	next := ""
	if len(entries) == r.Limit {
		next = entries[len(entries)-1].Key
	}
	return entries, next, nil
}

// Close clears the store
func (s *Memory) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables = make(map[string]map[string]memoryRow)
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
