package borrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bookledger/model"
	brepo "bookledger/repository/borrow"
)

// --- mocks ---

// memLedger is an in-memory Repo. Insert enforces the single-active-borrow
// constraint under a mutex, the way the partial unique index does in
// Postgres.
type memLedger struct {
	mu      sync.Mutex
	seq     int64
	records map[int64]*model.BorrowRecord
}

func newMemLedger() *memLedger {
	return &memLedger{records: map[int64]*model.BorrowRecord{}}
}

func (m *memLedger) Insert(ctx context.Context, rec *model.BorrowRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID == rec.UserID && r.BookID == rec.BookID && r.Status == model.StatusBorrowed {
			return brepo.ErrDuplicateActive
		}
	}
	m.seq++
	rec.ID = m.seq
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *memLedger) GetByID(ctx context.Context, id int64) (*model.BorrowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memLedger) FindActive(ctx context.Context, userID, bookID int64) (*model.BorrowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID == userID && r.BookID == bookID && r.Status == model.StatusBorrowed {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memLedger) MarkReturned(ctx context.Context, id int64, returnedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.Status != model.StatusBorrowed {
		return errors.New("no active row")
	}
	r.Status = model.StatusReturned
	r.ReturnDate = &returnedAt
	return nil
}

func (m *memLedger) Renew(ctx context.Context, id int64, due time.Time, renewedCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.Status != model.StatusBorrowed {
		return errors.New("no active row")
	}
	r.DueDate = due
	r.RenewedCount = renewedCount
	return nil
}

func (m *memLedger) List(ctx context.Context, userID int64, status model.BorrowStatus) ([]model.BorrowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BorrowRecord
	for _, r := range m.records {
		if userID != 0 && r.UserID != userID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (m *memLedger) Overdue(ctx context.Context, now time.Time) ([]model.BorrowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BorrowRecord
	for _, r := range m.records {
		if r.Status == model.StatusBorrowed && r.DueDate.Before(now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memLedger) CountBorrowed(ctx context.Context) (int64, error) {
	rows, _ := m.List(ctx, 0, model.StatusBorrowed)
	return int64(len(rows)), nil
}

func (m *memLedger) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	rows, _ := m.Overdue(ctx, now)
	return int64(len(rows)), nil
}

func (m *memLedger) CountBorrowedSince(ctx context.Context, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.records {
		if !r.BorrowDate.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memLedger) CountReturnedSince(ctx context.Context, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.records {
		if r.ReturnDate != nil && !r.ReturnDate.Before(since) {
			n++
		}
	}
	return n, nil
}

type quotaMock struct {
	getFn func(ctx context.Context, userID int64) (*model.UserQuota, error)
	addFn func(ctx context.Context, userID int64, delta int) error
}

func (m *quotaMock) Get(ctx context.Context, userID int64) (*model.UserQuota, error) {
	if m.getFn == nil {
		return nil, nil
	}
	return m.getFn(ctx, userID)
}

func (m *quotaMock) AddBorrowed(ctx context.Context, userID int64, delta int) error {
	if m.addFn == nil {
		return nil
	}
	return m.addFn(ctx, userID, delta)
}

type stockMock struct {
	getFn func(ctx context.Context, bookID int64) (*model.BookStock, error)
	setFn func(ctx context.Context, bookID int64, available int) error
}

func (m *stockMock) Get(ctx context.Context, bookID int64) (*model.BookStock, error) {
	if m.getFn == nil {
		return nil, nil
	}
	return m.getFn(ctx, bookID)
}

func (m *stockMock) SetAvailable(ctx context.Context, bookID int64, available int) error {
	if m.setFn == nil {
		return nil
	}
	return m.setFn(ctx, bookID, available)
}

func quotaOf(username string, borrowed, max int) *quotaMock {
	return &quotaMock{getFn: func(ctx context.Context, userID int64) (*model.UserQuota, error) {
		return &model.UserQuota{ID: userID, Username: username, BorrowedCount: borrowed, MaxBorrowCount: max}, nil
	}}
}

func stockOf(title string, available int) *stockMock {
	return &stockMock{getFn: func(ctx context.Context, bookID int64) (*model.BookStock, error) {
		return &model.BookStock{ID: bookID, Title: title, AvailableCopies: available, TotalCopies: available + 1}, nil
	}}
}

var testPolicy = Policy{LoanDays: 30, RenewDays: 15, MaxRenewCount: 1, DefaultMaxBorrowCount: 5}

func newTestService(r Repo, q *quotaMock, st *stockMock) Service {
	return New(r, q, st, testPolicy, slog.Default())
}

// --- borrow ---

func TestBorrow_Success(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()

	var quotaDelta int
	var stockSet int
	q := quotaOf("alice", 1, 5)
	q.addFn = func(ctx context.Context, userID int64, delta int) error {
		quotaDelta = delta
		return nil
	}
	st := stockOf("The Go Programming Language", 3)
	st.setFn = func(ctx context.Context, bookID int64, available int) error {
		stockSet = available
		return nil
	}

	svc := newTestService(ledger, q, st)

	out, err := svc.Borrow(ctx, 7, 42)
	require.NoError(t, err)
	require.Equal(t, model.StatusBorrowed, out.Status)
	require.Equal(t, 0, out.RenewedCount)
	require.Equal(t, 1, out.MaxRenewCount)
	require.Equal(t, "alice", out.Username)
	require.Equal(t, "The Go Programming Language", out.BookTitle)
	require.WithinDuration(t, out.BorrowDate.AddDate(0, 0, testPolicy.LoanDays), out.DueDate, time.Second)

	require.Equal(t, 1, quotaDelta)
	require.Equal(t, 2, stockSet)

	stored, err := ledger.GetByID(ctx, out.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, model.StatusBorrowed, stored.Status)
}

func TestBorrow_InvalidArgument(t *testing.T) {
	svc := newTestService(newMemLedger(), quotaOf("alice", 0, 5), stockOf("x", 1))

	_, err := svc.Borrow(context.Background(), 0, 42)
	require.Equal(t, ErrInvalidArgument, Code(err))

	_, err = svc.Borrow(context.Background(), 7, 0)
	require.Equal(t, ErrInvalidArgument, Code(err))
}

func TestBorrow_QuotaExceeded(t *testing.T) {
	ledger := newMemLedger()
	svc := newTestService(ledger, quotaOf("alice", 5, 5), stockOf("x", 3))

	_, err := svc.Borrow(context.Background(), 7, 42)
	require.Equal(t, ErrQuotaExceeded, Code(err))
	require.Contains(t, err.Error(), "5")

	n, _ := ledger.CountBorrowed(context.Background())
	require.Zero(t, n, "no ledger row on a failed precondition")
}

func TestBorrow_QuotaDefaultsMissingMax(t *testing.T) {
	// maxBorrowCount unknown at the owner: the configured default applies.
	svc := newTestService(newMemLedger(), quotaOf("alice", 5, 0), stockOf("x", 3))

	_, err := svc.Borrow(context.Background(), 7, 42)
	require.Equal(t, ErrQuotaExceeded, Code(err))
}

func TestBorrow_OutOfStock(t *testing.T) {
	svc := newTestService(newMemLedger(), quotaOf("alice", 0, 5), stockOf("x", 0))

	_, err := svc.Borrow(context.Background(), 7, 42)
	require.Equal(t, ErrNoStock, Code(err))
}

func TestBorrow_UnknownUserAndBook(t *testing.T) {
	svc := newTestService(newMemLedger(), &quotaMock{}, stockOf("x", 1))
	_, err := svc.Borrow(context.Background(), 7, 42)
	require.Equal(t, ErrUserNotFound, Code(err))

	svc = newTestService(newMemLedger(), quotaOf("alice", 0, 5), &stockMock{})
	_, err = svc.Borrow(context.Background(), 7, 42)
	require.Equal(t, ErrBookNotFound, Code(err))
}

func TestBorrow_QuotaOwnerDown(t *testing.T) {
	q := &quotaMock{getFn: func(ctx context.Context, userID int64) (*model.UserQuota, error) {
		return nil, errors.New("connection refused")
	}}
	svc := newTestService(newMemLedger(), q, stockOf("x", 1))

	_, err := svc.Borrow(context.Background(), 7, 42)
	require.Equal(t, ErrUpstream, Code(err))
}

func TestBorrow_DuplicateActive(t *testing.T) {
	ledger := newMemLedger()
	svc := newTestService(ledger, quotaOf("alice", 0, 5), stockOf("x", 3))

	_, err := svc.Borrow(context.Background(), 7, 42)
	require.NoError(t, err)

	_, err = svc.Borrow(context.Background(), 7, 42)
	require.Equal(t, ErrAlreadyBorrowed, Code(err))
}

func TestBorrow_WriteBackFailureDoesNotSurface(t *testing.T) {
	ledger := newMemLedger()
	q := quotaOf("alice", 0, 5)
	q.addFn = func(ctx context.Context, userID int64, delta int) error {
		return errors.New("quota owner down")
	}
	st := stockOf("x", 3)
	st.setFn = func(ctx context.Context, bookID int64, available int) error {
		return errors.New("stock owner down")
	}
	svc := newTestService(ledger, q, st)

	out, err := svc.Borrow(context.Background(), 7, 42)
	require.NoError(t, err, "post-commit write-back failures stay out of the caller's way")
	require.NotNil(t, out)

	n, _ := ledger.CountBorrowed(context.Background())
	require.EqualValues(t, 1, n)
}

func TestBorrow_ConcurrentSamePair(t *testing.T) {
	const attempts = 20
	ledger := newMemLedger()
	svc := newTestService(ledger, quotaOf("alice", 0, 100), stockOf("x", 100))

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Borrow(context.Background(), 7, 42)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			require.Equal(t, ErrAlreadyBorrowed, Code(err))
		}
	}
	require.Equal(t, 1, ok, "exactly one concurrent borrow may win")

	n, _ := ledger.CountBorrowed(context.Background())
	require.EqualValues(t, 1, n)
}

// --- return ---

func seedActive(t *testing.T, ledger *memLedger, userID, bookID int64) *model.BorrowRecord {
	t.Helper()
	now := time.Now()
	rec := &model.BorrowRecord{
		UserID:        userID,
		BookID:        bookID,
		BorrowDate:    now,
		DueDate:       now.AddDate(0, 0, testPolicy.LoanDays),
		MaxRenewCount: testPolicy.MaxRenewCount,
		Status:        model.StatusBorrowed,
	}
	require.NoError(t, ledger.Insert(context.Background(), rec))
	return rec
}

func TestReturn_Success(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	rec := seedActive(t, ledger, 7, 42)

	var quotaDelta, stockSet int
	q := quotaOf("alice", 1, 5)
	q.addFn = func(ctx context.Context, userID int64, delta int) error {
		quotaDelta = delta
		return nil
	}
	st := stockOf("x", 2)
	st.setFn = func(ctx context.Context, bookID int64, available int) error {
		stockSet = available
		return nil
	}
	svc := newTestService(ledger, q, st)

	out, err := svc.Return(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusReturned, out.Status)
	require.NotNil(t, out.ReturnDate)
	require.Equal(t, -1, quotaDelta)
	require.Equal(t, 3, stockSet)
}

func TestReturn_NotFound(t *testing.T) {
	svc := newTestService(newMemLedger(), quotaOf("a", 0, 5), stockOf("x", 1))
	_, err := svc.Return(context.Background(), 999)
	require.Equal(t, ErrRecordNotFound, Code(err))
}

func TestReturn_AlreadyReturnedIsIdempotentlyRejected(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	rec := seedActive(t, ledger, 7, 42)
	svc := newTestService(ledger, quotaOf("a", 1, 5), stockOf("x", 1))

	_, err := svc.Return(ctx, rec.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.Return(ctx, rec.ID)
		require.Equal(t, ErrAlreadyReturned, Code(err))
	}
}

func TestReturn_StockSnapshotMissingSkipsStockWriteBack(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	rec := seedActive(t, ledger, 7, 42)

	stockWritten := false
	st := &stockMock{
		getFn: func(ctx context.Context, bookID int64) (*model.BookStock, error) {
			return nil, errors.New("stock owner down")
		},
		setFn: func(ctx context.Context, bookID int64, available int) error {
			stockWritten = true
			return nil
		},
	}
	svc := newTestService(ledger, quotaOf("a", 1, 5), st)

	out, err := svc.Return(ctx, rec.ID)
	require.NoError(t, err, "return commits regardless of the stock owner")
	require.Equal(t, model.StatusReturned, out.Status)
	require.False(t, stockWritten, "no snapshot, nothing to compute the new count from")
}

// --- renew ---

func TestRenew_Success(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	rec := seedActive(t, ledger, 7, 42)
	svc := newTestService(ledger, quotaOf("alice", 1, 5), stockOf("x", 1))

	out, err := svc.Renew(ctx, 7, rec.ID)
	require.NoError(t, err)
	require.Equal(t, 1, out.RenewedCount)
	require.Equal(t, rec.DueDate.AddDate(0, 0, testPolicy.RenewDays), out.DueDate)
}

func TestRenew_NotOwner(t *testing.T) {
	ledger := newMemLedger()
	rec := seedActive(t, ledger, 7, 42)
	svc := newTestService(ledger, quotaOf("alice", 1, 5), stockOf("x", 1))

	_, err := svc.Renew(context.Background(), 8, rec.ID)
	require.Equal(t, ErrNotOwner, Code(err))
}

func TestRenew_NotActive(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	rec := seedActive(t, ledger, 7, 42)
	svc := newTestService(ledger, quotaOf("alice", 1, 5), stockOf("x", 1))

	_, err := svc.Return(ctx, rec.ID)
	require.NoError(t, err)

	_, err = svc.Renew(ctx, 7, rec.ID)
	require.Equal(t, ErrNotActive, Code(err))
}

func TestRenew_LimitExceeded(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	rec := seedActive(t, ledger, 7, 42)
	svc := newTestService(ledger, quotaOf("alice", 1, 5), stockOf("x", 1))

	_, err := svc.Renew(ctx, 7, rec.ID)
	require.NoError(t, err)

	_, err = svc.Renew(ctx, 7, rec.ID)
	require.Equal(t, ErrRenewLimit, Code(err))
}

func TestRenew_StockChecks(t *testing.T) {
	ctx := context.Background()

	ledger := newMemLedger()
	rec := seedActive(t, ledger, 7, 42)
	svc := newTestService(ledger, quotaOf("alice", 1, 5), stockOf("x", 0))
	_, err := svc.Renew(ctx, 7, rec.ID)
	require.Equal(t, ErrNoStock, Code(err))

	ledger = newMemLedger()
	rec = seedActive(t, ledger, 7, 42)
	down := &stockMock{getFn: func(ctx context.Context, bookID int64) (*model.BookStock, error) {
		return nil, errors.New("timeout")
	}}
	svc = newTestService(ledger, quotaOf("alice", 1, 5), down)
	_, err = svc.Renew(ctx, 7, rec.ID)
	require.Equal(t, ErrUpstream, Code(err))
}

// --- queries ---

func TestListAndStats(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	svc := newTestService(ledger, quotaOf("alice", 0, 5), stockOf("x", 10))

	for i := int64(1); i <= 3; i++ {
		_, err := svc.Borrow(ctx, 7, 40+i)
		require.NoError(t, err)
	}
	out, err := svc.Borrow(ctx, 8, 41)
	require.NoError(t, err)
	_, err = svc.Return(ctx, out.ID)
	require.NoError(t, err)

	mine, err := svc.List(ctx, 7, "")
	require.NoError(t, err)
	require.Len(t, mine, 3)

	returned, err := svc.List(ctx, 0, model.StatusReturned)
	require.NoError(t, err)
	require.Len(t, returned, 1)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.TotalBorrowed)
	require.EqualValues(t, 4, stats.TodayBorrowed)
	require.EqualValues(t, 1, stats.TodayReturned)
	require.Zero(t, stats.TotalOverdue)
}

func TestOverdue(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()

	now := time.Now()
	late := &model.BorrowRecord{
		UserID: 7, BookID: 42,
		BorrowDate: now.AddDate(0, 0, -40), DueDate: now.AddDate(0, 0, -10),
		MaxRenewCount: 1, Status: model.StatusBorrowed,
	}
	require.NoError(t, ledger.Insert(ctx, late))
	seedActive(t, ledger, 7, 43)

	svc := newTestService(ledger, quotaOf("alice", 2, 5), stockOf("x", 1))
	out, err := svc.Overdue(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, late.ID, out[0].ID)
	require.Equal(t, "alice", out[0].Username)
}

func TestGet(t *testing.T) {
	ledger := newMemLedger()
	rec := seedActive(t, ledger, 7, 42)
	svc := newTestService(ledger, quotaOf("alice", 1, 5), stockOf("tgpl", 1))

	out, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", out.Username)
	require.Equal(t, "tgpl", out.BookTitle)

	_, err = svc.Get(context.Background(), rec.ID+100)
	require.Equal(t, ErrRecordNotFound, Code(err))
}

// Enrichment is best-effort: a dead owner must not break a read.
func TestGet_EnrichmentDegrades(t *testing.T) {
	ledger := newMemLedger()
	rec := seedActive(t, ledger, 7, 42)
	down := fmt.Errorf("owner down")
	q := &quotaMock{getFn: func(ctx context.Context, userID int64) (*model.UserQuota, error) { return nil, down }}
	st := &stockMock{getFn: func(ctx context.Context, bookID int64) (*model.BookStock, error) { return nil, down }}
	svc := newTestService(ledger, q, st)

	out, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Empty(t, out.Username)
	require.Empty(t, out.BookTitle)
}
