// Package store defines the persistence interface consumed by the
// scheduling engine, plus the error sentinels its callers branch on.
// Implementations live in subpackages (inmemory, sqlite).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dmarkov/duebook/internal/domain"
)

var (
	// ErrNotFound indicates the requested bill or transaction does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates an optimistic write lost a race: the
	// bill's version no longer matches the expected one. The caller
	// retries once with fresh state; a second conflict surfaces as a
	// per-bill error and the bill is left for the next tick.
	ErrConflict = errors.New("version conflict")

	// ErrUnavailable indicates the store itself is unreachable. A
	// tick seeing this aborts without advancing the watermark so the
	// missed window is replayed later.
	ErrUnavailable = errors.New("store unavailable")
)

// Transition is the new per-cycle state committed for a bill. The
// store applies it together with the optional transaction in a single
// atomic write, guarded by the expected version.
type Transition struct {
	Status          domain.Status
	DueDate         time.Time
	LastProcessedAt time.Time
}

// BillFilter narrows ListBills results. Zero values mean "no filter".
type BillFilter struct {
	Status          domain.Status
	CategoryID      string
	Tag             string
	IncludeArchived bool
}

// Store is the transactional persistence collaborator of the engine.
type Store interface {
	// CreateBill persists a new bill. The store fills Version and
	// CreatedAt.
	CreateBill(ctx context.Context, bill *domain.Bill) error

	// GetBill returns the bill by id, or ErrNotFound.
	GetBill(ctx context.Context, id string) (*domain.Bill, error)

	// ListBills returns bills matching the filter, ordered by due date.
	ListBills(ctx context.Context, filter BillFilter) ([]*domain.Bill, error)

	// FindActiveBills returns every non-archived bill as of the given
	// instant, the working set of one scheduler pass.
	FindActiveBills(ctx context.Context, asOf time.Time) ([]*domain.Bill, error)

	// CommitTransition atomically applies next to the bill and, when
	// txn is non-nil, records the transaction in the same write.
	// Returns ErrConflict when expectedVersion no longer matches,
	// leaving both the bill and the transaction untouched.
	CommitTransition(ctx context.Context, billID string, expectedVersion int64, next Transition, txn *domain.Transaction) error

	// RecordTransaction persists a transaction without touching the
	// bill's state. Used for historical payments, which must not
	// reset the live cycle.
	RecordTransaction(ctx context.Context, txn *domain.Transaction) error

	// ListTransactions returns the bill's transactions, newest first.
	ListTransactions(ctx context.Context, billID string) ([]*domain.Transaction, error)

	// ArchiveBill marks the bill archived, removing it from
	// scheduling and default forecasts.
	ArchiveBill(ctx context.Context, id string) error

	// ReadWatermark returns the last successful scheduler tick time.
	// ok is false on first-ever start, before any tick completed.
	ReadWatermark(ctx context.Context) (t time.Time, ok bool, err error)

	// WriteWatermark records a completed tick. Called strictly after
	// the tick's effects are durably committed.
	WriteWatermark(ctx context.Context, t time.Time) error

	// Close releases the store's resources.
	Close() error
}
