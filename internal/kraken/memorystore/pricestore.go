package memorystore

import (
	"sync"
)

// MemoryPriceStore keeps the latest observed price per symbol. Prices are
// stored exactly as the exchange reported them.
type MemoryPriceStore struct {
	globalMu sync.RWMutex
	data     map[string]*symbolPrice
}

type symbolPrice struct {
	mu    sync.RWMutex
	price string
}

func NewPriceStore() *MemoryPriceStore {
	return &MemoryPriceStore{
		data: make(map[string]*symbolPrice),
	}
}

// Put overwrites the price for symbol. Last write wins.
func (s *MemoryPriceStore) Put(symbol, price string) {
	// Fast path: lock per-symbol entry only
	s.globalMu.RLock()
	entry, ok := s.data[symbol]
	s.globalMu.RUnlock()

	if !ok {
		s.globalMu.Lock()
		if entry, ok = s.data[symbol]; !ok {
			// New entries are published with their first price already set.
			s.data[symbol] = &symbolPrice{price: price}
			s.globalMu.Unlock()
			return
		}
		s.globalMu.Unlock()
	}

	entry.mu.Lock()
	entry.price = price
	entry.mu.Unlock()
}

// Get returns the most recent price for symbol, or false if none was seen.
func (s *MemoryPriceStore) Get(symbol string) (string, bool) {
	s.globalMu.RLock()
	entry, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if !ok {
		return "", false
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.price, true
}

// All returns a point-in-time copy of every known price.
func (s *MemoryPriceStore) All() map[string]string {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	result := make(map[string]string, len(s.data))
	for sym, entry := range s.data {
		entry.mu.RLock()
		result[sym] = entry.price
		entry.mu.RUnlock()
	}
	return result
}

// Count returns the number of symbols with a known price.
func (s *MemoryPriceStore) Count() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()
	return len(s.data)
}
