// Package sqlite provides the SQLite-backed implementation of
// store.Store. Optimistic concurrency uses a per-row version column:
// every transition is an UPDATE guarded by WHERE version = ?, and a
// zero rows-affected result maps to store.ErrConflict.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/dmarkov/duebook/internal/domain"
	"github.com/dmarkov/duebook/internal/store"
)

// Store is a SQLite-backed bill store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

// wrapErr maps driver-level failures onto store.ErrUnavailable so the
// engine can tell "store down" apart from per-bill problems.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	return fmt.Errorf("%s: %v: %w", op, err, store.ErrUnavailable)
}

// CreateBill implements store.Store.
func (s *Store) CreateBill(ctx context.Context, bill *domain.Bill) error {
	if bill.ID == "" {
		bill.ID = uuid.NewString()
	}
	if err := bill.Validate(); err != nil {
		return err
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}
	if bill.Status == "" {
		bill.Status = domain.StatusPending
	}
	bill.Version = 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("create bill", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO bills
		(id, title, amount, frequency, due_date, status, auto_pay,
		 category_id, archived, last_processed_at, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.ID, bill.Title, bill.Amount, string(bill.Frequency),
		formatDate(bill.DueDate), string(bill.Status), boolInt(bill.AutoPay),
		nullStr(bill.CategoryID), boolInt(bill.Archived),
		formatTime(bill.LastProcessedAt), bill.Version, formatTime(bill.CreatedAt),
	)
	if err != nil {
		return wrapErr("create bill", err)
	}

	for _, tag := range bill.Tags {
		if err := upsertTag(ctx, tx, bill.ID, tag); err != nil {
			return wrapErr("create bill tags", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("create bill", err)
	}
	return nil
}

func upsertTag(ctx context.Context, tx *sql.Tx, billID, tag string) error {
	var tagID string
	err := tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", tag).Scan(&tagID)
	if err == sql.ErrNoRows {
		tagID = uuid.NewString()
		if _, err := tx.ExecContext(ctx, "INSERT INTO tags (id, name) VALUES (?, ?)", tagID, tag); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "INSERT OR IGNORE INTO bill_tags (bill_id, tag_id) VALUES (?, ?)", billID, tagID)
	return err
}

const billColumns = `b.id, b.title, b.amount, b.frequency, b.due_date, b.status,
	b.auto_pay, b.category_id, b.archived, b.last_processed_at, b.version, b.created_at`

// GetBill implements store.Store.
func (s *Store) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+billColumns+" FROM bills b WHERE b.id = ?", id)
	bill, err := scanBill(row)
	if err != nil {
		return nil, wrapErr("get bill", err)
	}
	if err := s.loadTags(ctx, bill); err != nil {
		return nil, wrapErr("get bill tags", err)
	}
	return bill, nil
}

// ListBills implements store.Store.
func (s *Store) ListBills(ctx context.Context, filter store.BillFilter) ([]*domain.Bill, error) {
	query := "SELECT " + billColumns + " FROM bills b"
	var where []string
	var args []any

	if filter.Tag != "" {
		query += " JOIN bill_tags bt ON bt.bill_id = b.id JOIN tags t ON t.id = bt.tag_id"
		where = append(where, "t.name = ?")
		args = append(args, filter.Tag)
	}
	if !filter.IncludeArchived {
		where = append(where, "b.archived = 0")
	}
	if filter.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.CategoryID != "" {
		where = append(where, "b.category_id = ?")
		args = append(args, filter.CategoryID)
	}

	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY b.due_date, b.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list bills", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*domain.Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, wrapErr("list bills", err)
		}
		result = append(result, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list bills", err)
	}

	for _, bill := range result {
		if err := s.loadTags(ctx, bill); err != nil {
			return nil, wrapErr("list bill tags", err)
		}
	}
	return result, nil
}

// FindActiveBills implements store.Store.
func (s *Store) FindActiveBills(ctx context.Context, asOf time.Time) ([]*domain.Bill, error) {
	return s.ListBills(ctx, store.BillFilter{})
}

// CommitTransition implements store.Store. The state update and the
// transaction insert share one database transaction, so a bill is
// never advanced without its payment record or vice versa.
func (s *Store) CommitTransition(ctx context.Context, billID string, expectedVersion int64, next store.Transition, txn *domain.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("commit transition", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE bills
		SET status = ?, due_date = ?, last_processed_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(next.Status), formatDate(next.DueDate), formatTime(next.LastProcessedAt),
		billID, expectedVersion,
	)
	if err != nil {
		return wrapErr("commit transition", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapErr("commit transition", err)
	}
	if affected == 0 {
		// Either the bill is gone or another writer advanced it first.
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM bills WHERE id = ?", billID).Scan(&exists); err != nil {
			return wrapErr("commit transition", err)
		}
		if exists == 0 {
			return fmt.Errorf("bill %s: %w", billID, store.ErrNotFound)
		}
		return fmt.Errorf("bill %s expected version %d: %w", billID, expectedVersion, store.ErrConflict)
	}

	if txn != nil {
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return wrapErr("commit transition transaction", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("commit transition", err)
	}
	return nil
}

// RecordTransaction implements store.Store.
func (s *Store) RecordTransaction(ctx context.Context, txn *domain.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("record transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM bills WHERE id = ?", txn.BillID).Scan(&exists); err != nil {
		return wrapErr("record transaction", err)
	}
	if exists == 0 {
		return fmt.Errorf("bill %s: %w", txn.BillID, store.ErrNotFound)
	}

	if err := insertTransaction(ctx, tx, txn); err != nil {
		return wrapErr("record transaction", err)
	}
	if err := tx.Commit(); err != nil {
		return wrapErr("record transaction", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, txn *domain.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO transactions
		(id, bill_id, amount, paid_at, notes, historical, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.BillID, txn.Amount, formatTime(txn.PaidAt),
		txn.Notes, boolInt(txn.Historical), formatTime(txn.CreatedAt),
	)
	return err
}

// ListTransactions implements store.Store.
func (s *Store) ListTransactions(ctx context.Context, billID string) ([]*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, bill_id, amount, paid_at, notes, historical, created_at
		FROM transactions WHERE bill_id = ? ORDER BY paid_at DESC`, billID)
	if err != nil {
		return nil, wrapErr("list transactions", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		var paidAt, createdAt string
		var notes sql.NullString
		var historical int
		if err := rows.Scan(&txn.ID, &txn.BillID, &txn.Amount, &paidAt, &notes, &historical, &createdAt); err != nil {
			return nil, wrapErr("list transactions", err)
		}
		txn.PaidAt = parseTime(paidAt)
		txn.CreatedAt = parseTime(createdAt)
		txn.Notes = notes.String
		txn.Historical = historical != 0
		result = append(result, &txn)
	}
	return result, wrapErr("list transactions", rows.Err())
}

// ArchiveBill implements store.Store.
func (s *Store) ArchiveBill(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE bills SET archived = 1, version = version + 1 WHERE id = ?", id)
	if err != nil {
		return wrapErr("archive bill", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapErr("archive bill", err)
	}
	if affected == 0 {
		return fmt.Errorf("bill %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ReadWatermark implements store.Store.
func (s *Store) ReadWatermark(ctx context.Context) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT last_run_at FROM scheduler_watermark WHERE id = 1").Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, wrapErr("read watermark", err)
	}
	return parseTime(raw), true, nil
}

// WriteWatermark implements store.Store.
func (s *Store) WriteWatermark(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO scheduler_watermark (id, last_run_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_run_at = excluded.last_run_at`,
		formatTime(t))
	return wrapErr("write watermark", err)
}

func (s *Store) loadTags(ctx context.Context, bill *domain.Bill) error {
	rows, err := s.db.QueryContext(ctx, `SELECT t.name FROM tags t
		JOIN bill_tags bt ON bt.tag_id = t.id WHERE bt.bill_id = ? ORDER BY t.name`, bill.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	bill.Tags = nil
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		bill.Tags = append(bill.Tags, name)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBill(row scanner) (*domain.Bill, error) {
	var bill domain.Bill
	var frequency, status, dueDate, createdAt string
	var lastProcessed, categoryID sql.NullString
	var autoPay, archived int

	err := row.Scan(&bill.ID, &bill.Title, &bill.Amount, &frequency, &dueDate, &status,
		&autoPay, &categoryID, &archived, &lastProcessed, &bill.Version, &createdAt)
	if err != nil {
		return nil, err
	}

	bill.Frequency = domain.Frequency(frequency)
	bill.Status = domain.Status(status)
	bill.DueDate = parseTime(dueDate)
	bill.CreatedAt = parseTime(createdAt)
	bill.AutoPay = autoPay != 0
	bill.Archived = archived != 0
	bill.CategoryID = categoryID.String
	if lastProcessed.Valid {
		bill.LastProcessedAt = parseTime(lastProcessed.String)
	}
	return &bill, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t
	}
	return time.Time{}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
