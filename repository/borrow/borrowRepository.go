// repository/borrow/borrowRepository.go
package borrow

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"bookledger/model"
)

// ErrDuplicateActive is raised by Insert when a BORROWED row for the same
// (user_id, book_id) already exists. Enforced by the partial unique index
//
//	CREATE UNIQUE INDEX uq_borrow_active ON borrow_records (user_id, book_id)
//	WHERE status = 'BORROWED';
//
// which makes the check atomic with the commit.
var ErrDuplicateActive = errors.New("active borrow already exists")

type Repo interface {
	Insert(ctx context.Context, rec *model.BorrowRecord) error
	GetByID(ctx context.Context, id int64) (*model.BorrowRecord, error)
	FindActive(ctx context.Context, userID, bookID int64) (*model.BorrowRecord, error)
	MarkReturned(ctx context.Context, id int64, returnedAt time.Time) error
	Renew(ctx context.Context, id int64, due time.Time, renewedCount int) error

	List(ctx context.Context, userID int64, status model.BorrowStatus) ([]model.BorrowRecord, error)
	Overdue(ctx context.Context, now time.Time) ([]model.BorrowRecord, error)

	CountBorrowed(ctx context.Context) (int64, error)
	CountOverdue(ctx context.Context, now time.Time) (int64, error)
	CountBorrowedSince(ctx context.Context, since time.Time) (int64, error)
	CountReturnedSince(ctx context.Context, since time.Time) (int64, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

const recordCols = `id, user_id, book_id, borrow_date, due_date, return_date, renewed_count, max_renew_count, status`

func (r *repo) Insert(ctx context.Context, rec *model.BorrowRecord) error {
	const q = `
		INSERT INTO borrow_records
			(user_id, book_id, borrow_date, due_date, renewed_count, max_renew_count, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, q,
		rec.UserID, rec.BookID, rec.BorrowDate, rec.DueDate,
		rec.RenewedCount, rec.MaxRenewCount, rec.Status,
	).Scan(&rec.ID)
	if err != nil {
		if derr := mapDuplicateErr(err); derr != nil {
			return derr
		}
		return err
	}
	return nil
}

func mapDuplicateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		if strings.Contains(strings.ToLower(pgErr.ConstraintName), "borrow_active") {
			return ErrDuplicateActive
		}
	}
	return nil
}

func (r *repo) GetByID(ctx context.Context, id int64) (*model.BorrowRecord, error) {
	const q = `SELECT ` + recordCols + ` FROM borrow_records WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *repo) FindActive(ctx context.Context, userID, bookID int64) (*model.BorrowRecord, error) {
	const q = `
		SELECT ` + recordCols + `
		FROM borrow_records
		WHERE user_id = $1 AND book_id = $2 AND status = 'BORROWED'`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, userID, bookID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *repo) MarkReturned(ctx context.Context, id int64, returnedAt time.Time) error {
	const q = `
		UPDATE borrow_records
		SET status = 'RETURNED',
			return_date = $2
		WHERE id = $1
		AND status = 'BORROWED'`
	res, err := r.db.ExecContext(ctx, q, id, returnedAt)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) Renew(ctx context.Context, id int64, due time.Time, renewedCount int) error {
	const q = `
		UPDATE borrow_records
		SET due_date = $2,
			renewed_count = $3
		WHERE id = $1
		AND status = 'BORROWED'`
	res, err := r.db.ExecContext(ctx, q, id, due, renewedCount)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List filters by user and/or status; zero values mean no filter.
func (r *repo) List(ctx context.Context, userID int64, status model.BorrowStatus) ([]model.BorrowRecord, error) {
	const q = `
		SELECT ` + recordCols + `
		FROM borrow_records
		WHERE ($1 = 0 OR user_id = $1)
		AND ($2 = '' OR status = $2)
		ORDER BY borrow_date DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID, string(status))
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (r *repo) Overdue(ctx context.Context, now time.Time) ([]model.BorrowRecord, error) {
	const q = `
		SELECT ` + recordCols + `
		FROM borrow_records
		WHERE status = 'BORROWED'
		AND due_date < $1
		ORDER BY due_date ASC`
	rows, err := r.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (r *repo) CountBorrowed(ctx context.Context) (int64, error) {
	const q = `SELECT count(*) FROM borrow_records WHERE status = 'BORROWED'`
	var n int64
	err := r.db.QueryRowContext(ctx, q).Scan(&n)
	return n, err
}

func (r *repo) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	const q = `SELECT count(*) FROM borrow_records WHERE status = 'BORROWED' AND due_date < $1`
	var n int64
	err := r.db.QueryRowContext(ctx, q, now).Scan(&n)
	return n, err
}

func (r *repo) CountBorrowedSince(ctx context.Context, since time.Time) (int64, error) {
	const q = `SELECT count(*) FROM borrow_records WHERE borrow_date >= $1`
	var n int64
	err := r.db.QueryRowContext(ctx, q, since).Scan(&n)
	return n, err
}

func (r *repo) CountReturnedSince(ctx context.Context, since time.Time) (int64, error) {
	const q = `SELECT count(*) FROM borrow_records WHERE return_date >= $1`
	var n int64
	err := r.db.QueryRowContext(ctx, q, since).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.BorrowRecord, error) {
	rec := &model.BorrowRecord{}
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.BookID,
		&rec.BorrowDate, &rec.DueDate, &rec.ReturnDate,
		&rec.RenewedCount, &rec.MaxRenewCount, &rec.Status,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]model.BorrowRecord, error) {
	defer rows.Close()
	var out []model.BorrowRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
