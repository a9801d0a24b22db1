package http

import (
	"context"
	"sort"
	"sync"
	"time"

	"tallybook/internal/core"
	"tallybook/internal/storage"
)

// memStore is an in-memory Store used by the handler tests.
type memStore struct {
	mu     sync.Mutex
	users  map[int64]core.User
	txs    map[int64]core.Transaction
	nextID int64

	failWith error
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[int64]core.User),
		txs:   make(map[int64]core.Transaction),
	}
}

func (m *memStore) nextIDLocked() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateUser(_ context.Context, user core.User) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return core.User{}, m.failWith
	}
	for _, u := range m.users {
		if u.Username == user.Username {
			return core.User{}, storage.ErrUsernameTaken
		}
	}
	user.ID = m.nextIDLocked()
	user.CreatedAt = time.Now().UTC()
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, storage.ErrNotFound
}

func (m *memStore) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return core.Transaction{}, m.failWith
	}
	tx.ID = m.nextIDLocked()
	if u, ok := m.users[tx.CreatedBy]; ok {
		tx.CreatedByName = u.Username
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	m.txs[tx.ID] = tx
	return tx, nil
}

func (m *memStore) GetTransaction(_ context.Context, kind core.Kind, id int64) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok || tx.Kind != kind {
		return core.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

func (m *memStore) ListTransactions(_ context.Context, kind core.Kind, filter storage.ListFilter) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var start, end time.Time
	bounded := false
	switch {
	case filter.Day != nil:
		start = core.StartOfDay(*filter.Day)
		end = start.AddDate(0, 0, 1)
		bounded = true
	case filter.Start != nil && filter.End != nil:
		start = core.StartOfDay(*filter.Start)
		end = core.StartOfDay(*filter.End).AddDate(0, 0, 1)
		bounded = true
	}

	out := make([]core.Transaction, 0)
	for _, tx := range m.txs {
		if tx.Kind != kind {
			continue
		}
		if bounded && (tx.Date.Before(start) || !tx.Date.Before(end)) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memStore) UpdateTransaction(_ context.Context, tx core.Transaction, replaceAttachment bool) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.txs[tx.ID]
	if !ok || existing.Kind != tx.Kind {
		return core.Transaction{}, storage.ErrNotFound
	}
	existing.Amount = tx.Amount
	existing.PaymentType = tx.PaymentType
	existing.Note = tx.Note
	existing.Date = tx.Date
	if replaceAttachment {
		existing.Attachment = tx.Attachment
	}
	existing.UpdatedAt = time.Now().UTC()
	m.txs[tx.ID] = existing
	return existing, nil
}

func (m *memStore) DeleteTransaction(_ context.Context, kind core.Kind, id int64) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok || tx.Kind != kind {
		return core.Transaction{}, storage.ErrNotFound
	}
	delete(m.txs, id)
	return tx, nil
}

func (m *memStore) DaySummary(_ context.Context, day time.Time) (core.DaySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := core.StartOfDay(day)
	end := start.AddDate(0, 0, 1)

	summary := core.DaySummary{Date: start}
	for _, tx := range m.txs {
		if tx.Date.Before(start) || !tx.Date.Before(end) {
			continue
		}
		switch tx.Kind {
		case core.KindSale:
			summary.TotalSales.Cents += tx.Amount.Cents
			summary.SalesCount++
		case core.KindExpense:
			summary.TotalExpenses.Cents += tx.Amount.Cents
			summary.ExpensesCount++
		}
	}
	return summary, nil
}

func (m *memStore) MonthSummary(_ context.Context, year, month int) (core.MonthSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start, end := core.MonthRange(year, month)

	summary := core.MonthSummary{Year: year, Month: month}
	for _, tx := range m.txs {
		if tx.Date.Before(start) || !tx.Date.Before(end) {
			continue
		}
		switch tx.Kind {
		case core.KindSale:
			summary.TotalSales.Cents += tx.Amount.Cents
		case core.KindExpense:
			summary.TotalExpenses.Cents += tx.Amount.Cents
		}
	}
	return summary, nil
}
