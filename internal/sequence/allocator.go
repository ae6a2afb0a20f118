// Package sequence picks the first sequence number for a new run of bag ids.
package sequence

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/smallbiznis/cemtrack/internal/bagid"
	"github.com/smallbiznis/cemtrack/internal/config"
	"github.com/smallbiznis/cemtrack/internal/ledger/domain"
)

// Key identifies one id sequence: a plant, a batch and a calendar day.
type Key struct {
	Plant string
	Batch string
	Date  time.Time
}

func (k Key) Prefix() string {
	return bagid.Prefix(k.Plant, k.Date, k.Batch)
}

// Allocator returns the first of count consecutive sequence numbers for key.
// Callers must hold the ledger lock until the ids are appended.
type Allocator interface {
	Next(ctx context.Context, key Key, count int) (int, error)
}

// ScanAllocator continues after the highest sequence already stored for key.
type ScanAllocator struct {
	store domain.Store
}

func NewScanAllocator(store domain.Store) *ScanAllocator {
	return &ScanAllocator{store: store}
}

func (a *ScanAllocator) Next(ctx context.Context, key Key, count int) (int, error) {
	if count <= 0 {
		return 0, domain.ErrInvalidCount
	}
	prefix := key.Prefix()

	maxSeq := 0
	for id, err := range a.bagIDs(ctx, prefix) {
		if err != nil {
			return 0, fmt.Errorf("scan bag ids: %w", err)
		}
		if seq, ok := bagid.Sequence(id, prefix); ok && seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1, nil
}

func (a *ScanAllocator) bagIDs(ctx context.Context, prefix string) iter.Seq2[string, error] {
	if scanner, ok := a.store.(domain.BagIDScanner); ok {
		return scanner.ScanBagIDs(ctx, prefix)
	}
	return func(yield func(string, error) bool) {
		for bag, err := range a.store.Bags().Scan(ctx) {
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

// NaiveAllocator always starts at 1, so repeated registrations of the same
// plant, batch and day reuse ids. Kept for compatibility with legacy ledgers.
type NaiveAllocator struct{}

func (NaiveAllocator) Next(_ context.Context, _ Key, count int) (int, error) {
	if count <= 0 {
		return 0, domain.ErrInvalidCount
	}
	return 1, nil
}

// ForPolicy returns the allocator for a ledger sequence policy. Unknown
// policies fall back to scanning.
func ForPolicy(policy string, store domain.Store) Allocator {
	if policy == config.SequencePolicyNaive {
		return NaiveAllocator{}
	}
	return NewScanAllocator(store)
}
