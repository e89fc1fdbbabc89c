package sweeper

import (
	"context"
	"time"

	"github.com/nkiryanov/authsession/internal/logger"
)

const defaultInterval = 10 * time.Minute

type sessionCleaner interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Periodically deletes sessions which refresh token is expired
// Such sessions can't be used anyway, the sweeper only keeps the storage small
type Sweeper struct {
	interval time.Duration
	clock    func() time.Time
	sessions sessionCleaner
	logger   logger.Logger
}

func New(interval time.Duration, sessions sessionCleaner, logger logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Sweeper{
		interval: interval,
		clock:    time.Now,
		sessions: sessions,
		logger:   logger,
	}
}

// Start sweeping until ctx is done
// Returned channel is closed when the sweeper stopped
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting session sweeper", "interval", s.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Session sweeper stopped by context")
				return

			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	return idleStopped
}

// Delete expired sessions once
func (s *Sweeper) Sweep(ctx context.Context) {
	deleted, err := s.sessions.DeleteExpired(ctx, s.clock())
	if err != nil {
		s.logger.Error("Failed to delete expired sessions", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("Expired sessions deleted", "count", deleted)
	}
}
