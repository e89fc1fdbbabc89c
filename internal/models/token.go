package models

import (
	"time"
)

const TokenTypeBearer = "bearer"

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by AuthService on login or refresh
type TokenPair struct {
	Access    IssuedToken
	Refresh   IssuedToken
	TokenType string
}
