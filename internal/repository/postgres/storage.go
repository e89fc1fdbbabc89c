package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authsession/internal/repository"
)

// Storage over pool, connection or transaction
type Storage struct {
	db       DBTX
	users    *UserRepo
	sessions *SessionRepo
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{
		db:       db,
		users:    &UserRepo{DB: db},
		sessions: &SessionRepo{DB: db},
	}
}

func (s *Storage) User() repository.UserRepo {
	return s.users
}

func (s *Storage) Session() repository.SessionRepo {
	return s.sessions
}

// Run fn with storage bound to a transaction
// Committed if fn returns nil, rolled back on error or panic. Nested calls use savepoints.
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(NewStorage(tx))
	})
}
