package userquota

import (
	"context"
	"errors"

	"bookledger/model"
)

// ErrUnavailable is the degraded-read signal: the quota owner could not be
// reached, so there is no snapshot to decide on. The fallback never
// fabricates one.
var ErrUnavailable = errors.New("quota service unavailable")

// Client talks to the quota owner. Get returns nil without error when the
// owner answers but knows no such user. AddBorrowed sends a signed delta
// that the owner applies to its own authoritative count.
type Client interface {
	Get(ctx context.Context, userID int64) (*model.UserQuota, error)
	AddBorrowed(ctx context.Context, userID int64, delta int) error
}
