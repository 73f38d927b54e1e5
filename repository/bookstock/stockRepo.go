package bookstock

import (
	"context"
	"errors"

	"bookledger/model"
)

var ErrUnavailable = errors.New("stock service unavailable")

// Client talks to the stock owner. SetAvailable carries an absolute count
// computed from a snapshot read moments earlier; concurrent borrows of the
// same title can therefore clobber each other's update. Known gap, kept as
// is until the owner exposes an atomic delta.
type Client interface {
	Get(ctx context.Context, bookID int64) (*model.BookStock, error)
	SetAvailable(ctx context.Context, bookID int64, available int) error
}
