// Package viewed tracks each user's recently viewed products. This is the
// only mutable shared state in the process: the remove/prepend/truncate
// update is a read-modify-write, so the store serializes it behind a mutex.
package viewed

import "sync"

// DefaultLimit caps how many product ids are kept per user.
const DefaultLimit = 10

// Store keeps a bounded most-recent-first product list per user.
type Store struct {
	limit int

	mu    sync.Mutex
	lists map[int][]int
}

// NewStore creates a Store keeping at most limit entries per user. A zero
// limit falls back to DefaultLimit.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		limit: limit,
		lists: make(map[int][]int),
	}
}

// Track records that the user viewed the product. A product already in the
// list moves to the front; the list is truncated to the configured limit.
func (s *Store) Track(userID, productID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.lists[userID]

	for i, id := range list {
		if id == productID {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}

	list = append([]int{productID}, list...)
	if len(list) > s.limit {
		list = list[:s.limit]
	}

	s.lists[userID] = list
}

// Recent returns the user's viewed products, most recent first. The returned
// slice is a copy; callers may keep it without holding up the store.
func (s *Store) Recent(userID int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.lists[userID]
	out := make([]int, len(list))
	copy(out, list)
	return out
}
