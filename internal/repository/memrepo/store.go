package memrepo

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/fsdevblog/zenauction/internal/domain"
)

// store all tables of the memory storage. Rows are kept by value, so a shallow copy of every map and
// slice is a full snapshot.
type store struct {
	auctions      map[int64]domain.Auction
	bids          map[int64]domain.Bid
	cards         map[int64]domain.CardInstance
	accounts      map[int64]domain.Account
	reservations  map[int64]domain.Reservation
	transfers     map[int64]domain.PendingTransfer
	transactions  []domain.Transaction
	notifications []domain.Notification
	seq           int64
}

func newStore() *store {
	return &store{
		auctions:     make(map[int64]domain.Auction),
		bids:         make(map[int64]domain.Bid),
		cards:        make(map[int64]domain.CardInstance),
		accounts:     make(map[int64]domain.Account),
		reservations: make(map[int64]domain.Reservation),
		transfers:    make(map[int64]domain.PendingTransfer),
	}
}

func (s *store) snapshot() store {
	return store{
		auctions:      maps.Clone(s.auctions),
		bids:          maps.Clone(s.bids),
		cards:         maps.Clone(s.cards),
		accounts:      maps.Clone(s.accounts),
		reservations:  maps.Clone(s.reservations),
		transfers:     maps.Clone(s.transfers),
		transactions:  slices.Clone(s.transactions),
		notifications: slices.Clone(s.notifications),
		seq:           s.seq,
	}
}

func (s *store) nextID() int64 {
	s.seq++
	return s.seq
}

// access binds a repository to the store. mu is nil inside a unit of work, whose caller already
// holds the lock.
type access struct {
	data *store
	mu   *sync.Mutex
}

func (a access) lock() func() {
	if a.mu == nil {
		return func() {}
	}
	a.mu.Lock()
	return a.mu.Unlock
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("[memrepo/%s] %w", fmt.Sprintf(format, args...), domain.ErrRecordNotFound)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("[memrepo/%s] %w", fmt.Sprintf(format, args...), domain.ErrVersionConflict)
}

func duplicate(format string, args ...any) error {
	return fmt.Errorf("[memrepo/%s] %w", fmt.Sprintf(format, args...), domain.ErrDuplicateKey)
}
