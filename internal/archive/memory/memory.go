// Package memory is an in-process settlement archive for development and
// tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"rejestr/internal/core"
)

type Store struct {
	mu      sync.Mutex
	records []core.SettlementRecord
}

func New() *Store {
	return &Store{}
}

// Append stores the record and returns a synthetic reference.
func (s *Store) Append(_ context.Context, rec core.SettlementRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return fmt.Sprintf("mem:%d", len(s.records)), nil
}

// Records returns a copy of everything archived so far.
func (s *Store) Records() []core.SettlementRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.SettlementRecord(nil), s.records...)
}
