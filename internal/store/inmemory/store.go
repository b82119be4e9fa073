package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmarkov/duebook/internal/domain"
	"github.com/dmarkov/duebook/internal/store"
)

// Store is an in-memory implementation of store.Store.
// It keeps bills and transactions in maps and is safe for concurrent
// use. Data is lost on restart - for persistence, use the sqlite store.
type Store struct {
	mu           sync.RWMutex
	bills        map[string]*domain.Bill
	transactions map[string][]*domain.Transaction
	watermark    time.Time
	hasWatermark bool
}

// NewStore creates a new empty in-memory store.
func NewStore() *Store {
	return &Store{
		bills:        make(map[string]*domain.Bill),
		transactions: make(map[string][]*domain.Transaction),
	}
}

// CreateBill implements store.Store.
func (s *Store) CreateBill(ctx context.Context, bill *domain.Bill) error {
	if bill.ID == "" {
		bill.ID = uuid.NewString()
	}
	if err := bill.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bills[bill.ID]; exists {
		return fmt.Errorf("create bill %s: already exists", bill.ID)
	}

	bill.Version = 1
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}
	if bill.Status == "" {
		bill.Status = domain.StatusPending
	}

	s.bills[bill.ID] = bill.Clone()
	return nil
}

// GetBill implements store.Store.
func (s *Store) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, exists := s.bills[id]
	if !exists {
		return nil, fmt.Errorf("bill %s: %w", id, store.ErrNotFound)
	}
	return bill.Clone(), nil
}

// ListBills implements store.Store.
func (s *Store) ListBills(ctx context.Context, filter store.BillFilter) ([]*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bill
	for _, bill := range s.bills {
		if bill.Archived && !filter.IncludeArchived {
			continue
		}
		if filter.Status != "" && bill.Status != filter.Status {
			continue
		}
		if filter.CategoryID != "" && bill.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Tag != "" && !hasTag(bill, filter.Tag) {
			continue
		}
		result = append(result, bill.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].DueDate.Equal(result[j].DueDate) {
			return result[i].DueDate.Before(result[j].DueDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// FindActiveBills implements store.Store.
func (s *Store) FindActiveBills(ctx context.Context, asOf time.Time) ([]*domain.Bill, error) {
	return s.ListBills(ctx, store.BillFilter{})
}

// CommitTransition implements store.Store. The version check and the
// write happen under one lock, so at most one writer per bill wins.
func (s *Store) CommitTransition(ctx context.Context, billID string, expectedVersion int64, next store.Transition, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, exists := s.bills[billID]
	if !exists {
		return fmt.Errorf("bill %s: %w", billID, store.ErrNotFound)
	}
	if bill.Version != expectedVersion {
		return fmt.Errorf("bill %s at version %d, expected %d: %w", billID, bill.Version, expectedVersion, store.ErrConflict)
	}

	bill.Status = next.Status
	bill.DueDate = next.DueDate
	bill.LastProcessedAt = next.LastProcessedAt
	bill.Version++

	if txn != nil {
		s.appendTransaction(txn)
	}
	return nil
}

// RecordTransaction implements store.Store.
func (s *Store) RecordTransaction(ctx context.Context, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bills[txn.BillID]; !exists {
		return fmt.Errorf("bill %s: %w", txn.BillID, store.ErrNotFound)
	}
	s.appendTransaction(txn)
	return nil
}

// appendTransaction stores a copy of txn. Caller holds the lock.
func (s *Store) appendTransaction(txn *domain.Transaction) {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	txnCopy := *txn
	s.transactions[txn.BillID] = append(s.transactions[txn.BillID], &txnCopy)
}

// ListTransactions implements store.Store.
func (s *Store) ListTransactions(ctx context.Context, billID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txns := s.transactions[billID]
	result := make([]*domain.Transaction, 0, len(txns))
	for _, txn := range txns {
		txnCopy := *txn
		result = append(result, &txnCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PaidAt.After(result[j].PaidAt)
	})
	return result, nil
}

// ArchiveBill implements store.Store.
func (s *Store) ArchiveBill(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, exists := s.bills[id]
	if !exists {
		return fmt.Errorf("bill %s: %w", id, store.ErrNotFound)
	}
	bill.Archived = true
	bill.Version++
	return nil
}

// ReadWatermark implements store.Store.
func (s *Store) ReadWatermark(ctx context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watermark, s.hasWatermark, nil
}

// WriteWatermark implements store.Store.
func (s *Store) WriteWatermark(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermark = t
	s.hasWatermark = true
	return nil
}

// Close implements store.Store. It is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func hasTag(bill *domain.Bill, tag string) bool {
	for _, t := range bill.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
