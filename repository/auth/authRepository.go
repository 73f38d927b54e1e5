package auth

import (
	"context"
	"database/sql"
	"errors"

	"bookledger/model"
)

type Repo interface {
	ByUsername(ctx context.Context, username string) (*model.Account, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) ByUsername(ctx context.Context, username string) (*model.Account, error) {
	a := &model.Account{}
	err := r.db.QueryRowContext(ctx, `
        SELECT id, username, password_hash, role, created_at
        FROM accounts
        WHERE lower(username) = lower($1)`,
		username,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
