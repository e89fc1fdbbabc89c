// Package memory keeps users and sessions in process memory.
// Semantics match the postgres storage, data is lost on restart.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/models"
	"github.com/nkiryanov/authsession/internal/repository"
)

type state struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]models.User
	sessions map[uuid.UUID]models.Session

	// State of running transaction: the parent write lock is held for the whole call
	inTx bool
}

func newState() *state {
	return &state{
		users:    make(map[uuid.UUID]models.User),
		sessions: make(map[uuid.UUID]models.Session),
	}
}

func (s *state) read() (unlock func()) {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *state) write() (unlock func()) {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type Storage struct {
	st *state
}

func NewStorage() repository.Storage {
	return &Storage{st: newState()}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{st: s.st}
}

func (s *Storage) Session() repository.SessionRepo {
	return &SessionRepo{st: s.st}
}

// InTx runs fn against a copy of the data and publishes the copy if fn succeeds.
// The storage is write locked until fn returns, so nothing written outside the transaction is lost on commit.
// fn must use only the storage it is given: the outer one blocks until the transaction ends.
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	defer s.st.write()()

	tx := &state{
		users:    maps.Clone(s.st.users),
		sessions: maps.Clone(s.st.sessions),
		inTx:     true,
	}

	if err := fn(&Storage{st: tx}); err != nil {
		return err
	}

	s.st.users = tx.users
	s.st.sessions = tx.sessions

	return nil
}
