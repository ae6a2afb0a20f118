// Package memstore is an in-process ledger store.
package memstore

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cemtrack/internal/ledger/domain"
)

type state struct {
	mu     sync.RWMutex
	nextID int64
	bags   []domain.Bag
	usage  []domain.UsageRecord
	closed bool
}

// Store keeps both tables in memory. Scans iterate over a snapshot taken when
// the range starts.
type Store struct {
	st *state
	// txn is set on the store handed to Atomic callbacks, whose writes run
	// with the state lock already held.
	txn bool
}

func New() *Store {
	return &Store{st: &state{}}
}

func (s *Store) Bags() domain.Table[domain.Bag] {
	return &table[domain.Bag]{
		s:    s,
		rows: func(st *state) *[]domain.Bag { return &st.bags },
		setID: func(b *domain.Bag, id snowflake.ID) {
			if b.RowID == 0 {
				b.RowID = id
			}
		},
	}
}

func (s *Store) UsageRecords() domain.Table[domain.UsageRecord] {
	return &table[domain.UsageRecord]{
		s:    s,
		rows: func(st *state) *[]domain.UsageRecord { return &st.usage },
		setID: func(u *domain.UsageRecord, id snowflake.ID) {
			if u.RowID == 0 {
				u.RowID = id
			}
		},
	}
}

func (s *Store) FindBag(ctx context.Context, bagID string) (*domain.Bag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()

	for i := range s.st.bags {
		if s.st.bags[i].BagID == bagID {
			bag := s.st.bags[i]
			return &bag, nil
		}
	}
	return nil, domain.ErrBagNotFound
}

func (s *Store) MarkBagUsed(ctx context.Context, bagID, siteID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	unlock, err := s.write()
	if err != nil {
		return 0, err
	}
	defer unlock()

	for i := range s.st.bags {
		bag := &s.st.bags[i]
		if bag.BagID != bagID {
			continue
		}
		if bag.Status != domain.BagStatusProduced {
			return 0, nil
		}
		bag.Status = domain.BagStatusUsed
		bag.CurrentSiteID = siteID
		return 1, nil
	}
	return 0, domain.ErrBagNotFound
}

// Atomic holds the write lock for the whole callback and restores the prior
// contents when fn fails.
func (s *Store) Atomic(ctx context.Context, fn func(domain.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.txn {
		return fn(s)
	}
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()

	nextID := s.st.nextID
	bags := len(s.st.bags)
	usage := len(s.st.usage)
	bagSnapshot := make([]domain.Bag, bags)
	copy(bagSnapshot, s.st.bags)

	if err := fn(&Store{st: s.st, txn: true}); err != nil {
		s.st.nextID = nextID
		s.st.bags = bagSnapshot
		s.st.usage = s.st.usage[:usage]
		return err
	}
	return nil
}

func (s *Store) ScanBagIDs(ctx context.Context, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for bag, err := range s.Bags().Scan(ctx) {
			if err != nil {
				yield("", err)
				return
			}
			if !strings.HasPrefix(bag.BagID, prefix) {
				continue
			}
			if !yield(bag.BagID, nil) {
				return
			}
		}
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock, err := s.read()
	if err != nil {
		return err
	}
	unlock()
	return nil
}

func (s *Store) Close() error {
	s.st.mu.Lock()
	s.st.closed = true
	s.st.mu.Unlock()
	return nil
}

func (s *Store) read() (func(), error) {
	if s.txn {
		return func() {}, nil
	}
	s.st.mu.RLock()
	if s.st.closed {
		s.st.mu.RUnlock()
		return nil, domain.ErrStoreUnavailable
	}
	return s.st.mu.RUnlock, nil
}

func (s *Store) write() (func(), error) {
	if s.txn {
		return func() {}, nil
	}
	s.st.mu.Lock()
	if s.st.closed {
		s.st.mu.Unlock()
		return nil, domain.ErrStoreUnavailable
	}
	return s.st.mu.Unlock, nil
}

var (
	_ domain.Store        = (*Store)(nil)
	_ domain.BagIDScanner = (*Store)(nil)
)
