// Package memory is an in-process journal store with the same semantics as
// the Postgres one.
package memory

import (
	"context"
	"sync"

	"papertrader/internal/ledger"
)

type MemoryStore struct {
	mu           sync.Mutex
	transactions []ledger.Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make([]ledger.Transaction, 0),
	}
}

func (m *MemoryStore) SaveTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.transactions {
		if existing.ID == tx.ID {
			return nil // idempotent on transaction id
		}
	}
	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *MemoryStore) DeleteAllTransactions(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = m.transactions[:0]
	return nil
}

func (m *MemoryStore) Transactions() []ledger.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to avoid race
	out := make([]ledger.Transaction, len(m.transactions))
	copy(out, m.transactions)
	return out
}
