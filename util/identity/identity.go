// Package identity carries the edge-verified caller through a request
// context so outbound calls can assert who triggered them.
package identity

import (
	"context"
	"net/http"
	"strconv"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUsername = "X-Username"
	HeaderUserRole = "X-User-Role"
)

type Identity struct {
	UserID   int64
	Username string
	Role     string
}

type ctxKey struct{}

func WithContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID > 0
}

// Stamp copies the caller identity from the request context onto the
// outbound headers. No-op when the context carries no verified caller.
func Stamp(req *http.Request) {
	id, ok := FromContext(req.Context())
	if !ok {
		return
	}
	req.Header.Set(HeaderUserID, strconv.FormatInt(id.UserID, 10))
	req.Header.Set(HeaderUsername, id.Username)
	req.Header.Set(HeaderUserRole, id.Role)
}
