package memory

import (
	"context"
	"fmt"
	"sync"

	"tallybook/internal/core"
	"tallybook/internal/export"
)

// Store is an in-memory ledger used in tests and when no spreadsheet
// is configured.
type Store struct {
	mu    sync.Mutex
	items []core.Transaction
	fail  error
}

var _ export.LedgerWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, tx core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.items = append(s.items, tx)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Items returns a copy of everything appended so far.
func (s *Store) Items() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.items...)
}

// FailWith makes subsequent appends return err.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}
