package borrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bookledger/model"
	"bookledger/repository/bookstock"
	brepo "bookledger/repository/borrow"
	"bookledger/repository/userquota"
)

// errors used by controllers

type ErrCode string

const (
	ErrInvalidArgument ErrCode = "INVALID_ARGUMENT"
	ErrUserNotFound    ErrCode = "USER_NOT_FOUND"
	ErrBookNotFound    ErrCode = "BOOK_NOT_FOUND"
	ErrRecordNotFound  ErrCode = "RECORD_NOT_FOUND"
	ErrAlreadyBorrowed ErrCode = "ALREADY_BORROWED"
	ErrAlreadyReturned ErrCode = "ALREADY_RETURNED"
	ErrNotOwner        ErrCode = "NOT_OWNER"
	ErrNotActive       ErrCode = "NOT_ACTIVE"
	ErrQuotaExceeded   ErrCode = "QUOTA_EXCEEDED"
	ErrNoStock         ErrCode = "NO_STOCK"
	ErrRenewLimit      ErrCode = "RENEW_LIMIT_EXCEEDED"
	ErrUpstream        ErrCode = "UPSTREAM_UNAVAILABLE"
)

type codedError struct {
	code ErrCode
	msg  string
}

func (e codedError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return string(e.code)
}
func (e codedError) Code() ErrCode { return e.code }

func makeErr(c ErrCode) error { return codedError{code: c} }

func makeErrf(c ErrCode, format string, args ...any) error {
	return codedError{code: c, msg: fmt.Sprintf(format, args...)}
}

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// Policy is the loan configuration, fixed at boot.
type Policy struct {
	LoanDays              int
	RenewDays             int
	MaxRenewCount         int
	DefaultMaxBorrowCount int
}

// Repo is the ledger store the coordinator exclusively owns.
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

type Service interface {
	// Borrow checks quota and stock snapshots, commits the ledger row, then
	// fires the owner write-backs without waiting on their fate.
	Borrow(ctx context.Context, userID, bookID int64) (*model.BorrowDetail, error)

	// Return transitions an active loan to RETURNED and fires the reverse
	// write-backs.
	Return(ctx context.Context, recordID int64) (*model.BorrowDetail, error)

	// Renew extends the due date for the borrower.
	Renew(ctx context.Context, callerID, recordID int64) (*model.BorrowDetail, error)

	List(ctx context.Context, userID int64, status model.BorrowStatus) ([]model.BorrowDetail, error)
	Get(ctx context.Context, recordID int64) (*model.BorrowDetail, error)
	Overdue(ctx context.Context) ([]model.BorrowDetail, error)
	Stats(ctx context.Context) (*model.BorrowStats, error)
}

// ----- Service implementation -----

type service struct {
	r     Repo
	quota userquota.Client
	stock bookstock.Client
	p     Policy
	log   *slog.Logger
}

func New(r Repo, quota userquota.Client, stock bookstock.Client, p Policy, log *slog.Logger) Service {
	return &service{r: r, quota: quota, stock: stock, p: p, log: log}
}

// Borrow creates the ledger entry. The local insert is the durability
// boundary: once it commits, the borrow has happened and owner write-back
// failures only show up in the logs.
func (s *service) Borrow(ctx context.Context, userID, bookID int64) (*model.BorrowDetail, error) {
	if userID <= 0 || bookID <= 0 {
		return nil, makeErrf(ErrInvalidArgument, "user id and book id are required")
	}

	if existing, err := s.r.FindActive(ctx, userID, bookID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, makeErr(ErrAlreadyBorrowed)
	}

	// Quota read is on the critical path: no snapshot, no decision.
	quota, err := s.quota.Get(ctx, userID)
	if err != nil {
		return nil, makeErr(ErrUpstream)
	}
	if quota == nil {
		return nil, makeErr(ErrUserNotFound)
	}

	maxCount := quota.MaxBorrowCount
	if maxCount <= 0 {
		maxCount = s.p.DefaultMaxBorrowCount
	}
	if quota.BorrowedCount >= maxCount {
		return nil, makeErrf(ErrQuotaExceeded,
			"borrow limit reached: %d borrowed, max %d", quota.BorrowedCount, maxCount)
	}

	stock, err := s.stock.Get(ctx, bookID)
	if err != nil {
		return nil, makeErr(ErrUpstream)
	}
	if stock == nil {
		return nil, makeErr(ErrBookNotFound)
	}
	if stock.AvailableCopies <= 0 {
		return nil, makeErr(ErrNoStock)
	}

	now := time.Now()
	rec := &model.BorrowRecord{
		UserID:        userID,
		BookID:        bookID,
		BorrowDate:    now,
		DueDate:       now.AddDate(0, 0, s.p.LoanDays),
		RenewedCount:  0,
		MaxRenewCount: s.p.MaxRenewCount,
		Status:        model.StatusBorrowed,
	}
	if err := s.r.Insert(ctx, rec); err != nil {
		if errors.Is(err, brepo.ErrDuplicateActive) {
			return nil, makeErr(ErrAlreadyBorrowed)
		}
		return nil, err
	}

	// Past the durability boundary. Detach from the request so a caller
	// timeout cannot cut a write-back short.
	wctx := context.WithoutCancel(ctx)
	if err := s.quota.AddBorrowed(wctx, userID, 1); err != nil {
		s.log.Error("quota write-back failed after borrow", "record_id", rec.ID, "err", err)
	}
	if err := s.stock.SetAvailable(wctx, bookID, stock.AvailableCopies-1); err != nil {
		s.log.Error("stock write-back failed after borrow", "record_id", rec.ID, "err", err)
	}

	s.log.Info("borrowed", "record_id", rec.ID, "user_id", userID, "book_id", bookID, "due", rec.DueDate)

	d := &model.BorrowDetail{BorrowRecord: *rec, Username: quota.Username, BookTitle: stock.Title}
	return d, nil
}

func (s *service) Return(ctx context.Context, recordID int64) (*model.BorrowDetail, error) {
	rec, err := s.r.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, makeErr(ErrRecordNotFound)
	}
	if rec.Status.Terminal() {
		return nil, makeErr(ErrAlreadyReturned)
	}

	// Pre-return snapshot; the write-back below computes from it.
	stock, stockErr := s.stock.Get(ctx, rec.BookID)

	now := time.Now()
	if err := s.r.MarkReturned(ctx, recordID, now); err != nil {
		return nil, err
	}
	rec.Status = model.StatusReturned
	rec.ReturnDate = &now

	wctx := context.WithoutCancel(ctx)
	if err := s.quota.AddBorrowed(wctx, rec.UserID, -1); err != nil {
		s.log.Error("quota write-back failed after return", "record_id", recordID, "err", err)
	}
	if stockErr == nil && stock != nil {
		if err := s.stock.SetAvailable(wctx, rec.BookID, stock.AvailableCopies+1); err != nil {
			s.log.Error("stock write-back failed after return", "record_id", recordID, "err", err)
		}
	} else {
		s.log.Error("no stock snapshot at return, skipping stock write-back",
			"record_id", recordID, "err", stockErr)
	}

	s.log.Info("returned", "record_id", recordID, "user_id", rec.UserID, "book_id", rec.BookID)

	return s.enrich(ctx, rec), nil
}

func (s *service) Renew(ctx context.Context, callerID, recordID int64) (*model.BorrowDetail, error) {
	rec, err := s.r.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, makeErr(ErrRecordNotFound)
	}
	if rec.UserID != callerID {
		return nil, makeErr(ErrNotOwner)
	}
	if rec.Status != model.StatusBorrowed {
		return nil, makeErr(ErrNotActive)
	}
	if rec.RenewedCount >= rec.MaxRenewCount {
		return nil, makeErr(ErrRenewLimit)
	}

	// Availability is re-checked even though the caller holds the copy.
	stock, err := s.stock.Get(ctx, rec.BookID)
	if err != nil {
		return nil, makeErr(ErrUpstream)
	}
	if stock == nil {
		return nil, makeErr(ErrBookNotFound)
	}
	if stock.AvailableCopies <= 0 {
		return nil, makeErr(ErrNoStock)
	}

	rec.DueDate = rec.DueDate.AddDate(0, 0, s.p.RenewDays)
	rec.RenewedCount++
	if err := s.r.Renew(ctx, recordID, rec.DueDate, rec.RenewedCount); err != nil {
		return nil, err
	}

	s.log.Info("renewed", "record_id", recordID, "renewed_count", rec.RenewedCount, "due", rec.DueDate)

	d := s.enrich(ctx, rec)
	d.BookTitle = stock.Title
	return d, nil
}

func (s *service) List(ctx context.Context, userID int64, status model.BorrowStatus) ([]model.BorrowDetail, error) {
	recs, err := s.r.List(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	return s.enrichAll(ctx, recs), nil
}

func (s *service) Get(ctx context.Context, recordID int64) (*model.BorrowDetail, error) {
	rec, err := s.r.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, makeErr(ErrRecordNotFound)
	}
	return s.enrich(ctx, rec), nil
}

func (s *service) Overdue(ctx context.Context) ([]model.BorrowDetail, error) {
	recs, err := s.r.Overdue(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	return s.enrichAll(ctx, recs), nil
}

func (s *service) Stats(ctx context.Context) (*model.BorrowStats, error) {
	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := &model.BorrowStats{}
	var err error
	if stats.TotalBorrowed, err = s.r.CountBorrowed(ctx); err != nil {
		return nil, err
	}
	if stats.TotalOverdue, err = s.r.CountOverdue(ctx, now); err != nil {
		return nil, err
	}
	if stats.TodayBorrowed, err = s.r.CountBorrowedSince(ctx, todayStart); err != nil {
		return nil, err
	}
	if stats.TodayReturned, err = s.r.CountReturnedSince(ctx, todayStart); err != nil {
		return nil, err
	}
	return stats, nil
}

// enrich joins the owner-side names onto a record. Lookups are best-effort;
// an unreachable owner just leaves the field empty.
func (s *service) enrich(ctx context.Context, rec *model.BorrowRecord) *model.BorrowDetail {
	d := &model.BorrowDetail{BorrowRecord: *rec}
	if q, err := s.quota.Get(ctx, rec.UserID); err == nil && q != nil {
		d.Username = q.Username
	}
	if st, err := s.stock.Get(ctx, rec.BookID); err == nil && st != nil {
		d.BookTitle = st.Title
	}
	return d
}

func (s *service) enrichAll(ctx context.Context, recs []model.BorrowRecord) []model.BorrowDetail {
	out := make([]model.BorrowDetail, 0, len(recs))
	for i := range recs {
		out = append(out, *s.enrich(ctx, &recs[i]))
	}
	return out
}
