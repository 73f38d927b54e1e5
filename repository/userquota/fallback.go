package userquota

import (
	"context"
	"log/slog"

	"bookledger/model"
)

// fallback degrades reads loudly and writes silently. A failed Get becomes
// ErrUnavailable so the caller fails fast instead of deciding on fake data;
// a failed AddBorrowed is logged and reported as success so a downstream
// outage cannot undo an already-committed ledger write. The price is quota
// drift until the owner is reconciled.
type fallback struct {
	next Client
	log  *slog.Logger
}

func NewFallback(next Client, log *slog.Logger) Client {
	return &fallback{next: next, log: log}
}

func (f *fallback) Get(ctx context.Context, userID int64) (*model.UserQuota, error) {
	q, err := f.next.Get(ctx, userID)
	if err != nil {
		f.log.Warn("quota owner unreachable on read", "user_id", userID, "err", err)
		return nil, ErrUnavailable
	}
	return q, nil
}

func (f *fallback) AddBorrowed(ctx context.Context, userID int64, delta int) error {
	if err := f.next.AddBorrowed(ctx, userID, delta); err != nil {
		f.log.Error("quota owner unreachable on write, counter will drift",
			"user_id", userID, "delta", delta, "err", err)
	}
	return nil
}
