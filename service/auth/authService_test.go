package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"bookledger/model"
	authrepo "bookledger/repository/auth"
	"bookledger/util/hash"
	jwtutil "bookledger/util/jwt"
)

type mockRepo struct {
	byUsernameFn func(ctx context.Context, username string) (*model.Account, error)
}

var _ authrepo.Repo = (*mockRepo)(nil)

func (m *mockRepo) ByUsername(ctx context.Context, username string) (*model.Account, error) {
	if m.byUsernameFn == nil {
		return nil, nil
	}
	return m.byUsernameFn(ctx, username)
}

func TestLogin_Success(t *testing.T) {
	hashed, err := hash.HashPassword("supersecret")
	require.NoError(t, err)

	m := &mockRepo{
		byUsernameFn: func(ctx context.Context, username string) (*model.Account, error) {
			return &model.Account{ID: 42, Username: "alice", PasswordHash: hashed, Role: "admin"}, nil
		},
	}
	svc := New(m, "test-secret")

	tok, err := svc.Login(context.Background(), "alice", "supersecret")
	require.NoError(t, err)

	claims, err := jwtutil.Parse("test-secret", tok)
	require.NoError(t, err)
	require.EqualValues(t, 42, claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "admin", claims.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	hashed, err := hash.HashPassword("supersecret")
	require.NoError(t, err)

	m := &mockRepo{
		byUsernameFn: func(ctx context.Context, username string) (*model.Account, error) {
			return &model.Account{ID: 42, Username: "alice", PasswordHash: hashed}, nil
		},
	}
	svc := New(m, "test-secret")

	_, err = svc.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCreds)
}

func TestLogin_UnknownUser(t *testing.T) {
	svc := New(&mockRepo{}, "test-secret")
	_, err := svc.Login(context.Background(), "nobody", "whatever")
	require.ErrorIs(t, err, ErrInvalidCreds)
}
