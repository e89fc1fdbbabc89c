package models

import (
	"time"

	"github.com/google/uuid"
)

// Current session of the user: at most one per user.
// Only token digests are stored, never the raw tokens.
type Session struct {
	UserID           uuid.UUID
	AccessHash       string
	AccessExpiresAt  time.Time
	RefreshHash      string
	RefreshExpiresAt time.Time
}
