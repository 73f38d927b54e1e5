package bookstock

import (
	"context"
	"log/slog"

	"bookledger/model"
)

// fallback mirrors the quota one: loud reads, silent writes.
type fallback struct {
	next Client
	log  *slog.Logger
}

func NewFallback(next Client, log *slog.Logger) Client {
	return &fallback{next: next, log: log}
}

func (f *fallback) Get(ctx context.Context, bookID int64) (*model.BookStock, error) {
	s, err := f.next.Get(ctx, bookID)
	if err != nil {
		f.log.Warn("stock owner unreachable on read", "book_id", bookID, "err", err)
		return nil, ErrUnavailable
	}
	return s, nil
}

func (f *fallback) SetAvailable(ctx context.Context, bookID int64, available int) error {
	if err := f.next.SetAvailable(ctx, bookID, available); err != nil {
		f.log.Error("stock owner unreachable on write, counter will drift",
			"book_id", bookID, "available", available, "err", err)
	}
	return nil
}
