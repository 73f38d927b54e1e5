package auth

import (
	"context"
	"errors"
	"time"

	authrepo "bookledger/repository/auth"
	"bookledger/util/hash"
	jwtutil "bookledger/util/jwt"
)

var ErrInvalidCreds = errors.New("invalid credentials")

const tokenTTL = 24 * time.Hour

type Service interface {
	Login(ctx context.Context, username, password string) (string, error)
}

type service struct {
	r      authrepo.Repo
	secret string
}

func New(r authrepo.Repo, secret string) Service {
	return &service{r: r, secret: secret}
}

func (s *service) Login(ctx context.Context, username, password string) (string, error) {
	acct, err := s.r.ByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", ErrInvalidCreds
	}
	if !hash.Check(acct.PasswordHash, password) {
		return "", ErrInvalidCreds
	}
	return jwtutil.Issue(s.secret, acct.ID, acct.Username, acct.Role, tokenTTL)
}
