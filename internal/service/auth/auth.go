package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/models"
	"github.com/nkiryanov/authsession/internal/repository"
	"github.com/nkiryanov/authsession/internal/service/auth/tokenmanager"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Hasher to use during user registration or login process
	// BcryptHasher if not set
	Hasher PasswordHasher

	// Source of current time, time.Now if not set
	// Read once per call: the same instant is used to mint tokens and to check stored expirations
	Clock func() time.Time
}

// Auth service
//
// Holds no state itself: the current session of every user lives in the storage.
// Calls on the same user are not serialized, concurrent logins or refreshes race on the
// session row and the last write wins. Tokens of the loser never validate.
type AuthService struct {
	// Manager to issue and verify tokens (access and refresh)
	tokens *tokenmanager.TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	clock func() time.Time

	storage repository.Storage

	// Hash compared against when user is not found, so unknown email costs the same as wrong password
	dummyOnce sync.Once
	dummyHash string
}

func NewService(cfg Config, tokens *tokenmanager.TokenManager, storage repository.Storage) (*AuthService, error) {
	if tokens == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}

	// Set default bcrypt hasher if not user provided by user
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &AuthService{
		tokens:  tokens,
		hasher:  hasher,
		clock:   clock,
		storage: storage,
	}, nil
}

// Check user credentials
// Unknown email and wrong password are indistinguishable: both are apperrors.ErrInvalidCredentials
func (s *AuthService) Authenticate(ctx context.Context, email string, password string) (models.User, error) {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummy(), password)
		return models.User{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.User{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return models.User{}, apperrors.ErrAccountDisabled
	}

	return user, nil
}

// Create new active, not verified user without session
// Both email and username are checked, if both are taken the errors are joined
// Checks and insert run in one transaction; a conflicting insert that still slips in fails on unique constraints
func (s *AuthService) Register(ctx context.Context, email string, username string, password string) (models.Identity, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.Identity{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	var user models.User
	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		var conflicts []error

		taken := func(get func(context.Context, string) (models.User, error), value string, conflict error) error {
			_, err := get(ctx, value)
			switch {
			case err == nil:
				conflicts = append(conflicts, conflict)
				return nil
			case errors.Is(err, apperrors.ErrUserNotFound):
				return nil
			default:
				return err
			}
		}

		if err := taken(tx.User().GetUserByEmail, email, apperrors.ErrEmailTaken); err != nil {
			return err
		}
		if err := taken(tx.User().GetUserByUsername, username, apperrors.ErrUsernameTaken); err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return errors.Join(conflicts...)
		}

		var err error
		user, err = tx.User().CreateUser(ctx, repository.CreateUserParams{
			Email:          email,
			Username:       username,
			HashedPassword: hash,
			IsActive:       true,
			IsVerified:     false,
		})
		return err
	})
	if err != nil {
		return models.Identity{}, err
	}

	return user.Identity(), nil
}

// Authenticate user and start new session
// Previous session of the user (if any) is discarded
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.TokenPair, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return models.TokenPair{}, err
	}

	return s.startSession(ctx, user, s.clock())
}

// Exchange refresh token for the new pair
// The refresh token is accepted only if it is the current one of the user and not expired
// A disabled account never refreshes: its session is cleared and apperrors.ErrInvalidToken returned
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	now := s.clock()

	claims, err := s.tokens.Verify(refreshToken, tokenmanager.KindRefresh, now)
	if err != nil {
		return models.TokenPair{}, err
	}
	if claims.Subject == "" {
		return models.TokenPair{}, apperrors.ErrInvalidToken
	}

	user, err := s.storage.User().GetUserByRefreshHash(ctx, digest(refreshToken), now)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.TokenPair{}, apperrors.ErrInvalidToken
	case err != nil:
		return models.TokenPair{}, err
	}

	if user.Email != claims.Subject {
		return models.TokenPair{}, apperrors.ErrInvalidToken
	}

	if !user.IsActive {
		if err := s.storage.Session().ClearSession(ctx, user.ID); err != nil {
			return models.TokenPair{}, err
		}
		return models.TokenPair{}, apperrors.ErrInvalidToken
	}

	return s.startSession(ctx, user, now)
}

// End session of the access token owner
// The account is found by token subject, so any not expired access token of the user ends its session
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.Verify(accessToken, tokenmanager.KindAccess, s.clock())
	if err != nil {
		return err
	}
	if claims.Subject == "" {
		return apperrors.ErrInvalidToken
	}

	user, err := s.storage.User().GetUserByEmail(ctx, claims.Subject)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return apperrors.ErrInvalidToken
	case err != nil:
		return err
	}

	return s.storage.Session().ClearSession(ctx, user.ID)
}

// Resolve access token to the identity of its owner
// Returns false if token is not valid, not the current one, expired or the user is disabled
// Error is returned on storage failures only
func (s *AuthService) CurrentIdentity(ctx context.Context, accessToken string) (models.Identity, bool, error) {
	now := s.clock()

	claims, err := s.tokens.Verify(accessToken, tokenmanager.KindAccess, now)
	if err != nil || claims.Subject == "" {
		return models.Identity{}, false, nil
	}

	user, err := s.storage.User().GetUserByAccessHash(ctx, digest(accessToken), now)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.Identity{}, false, nil
	case err != nil:
		return models.Identity{}, false, err
	}

	if !user.IsActive || user.Email != claims.Subject {
		return models.Identity{}, false, nil
	}

	return user.Identity(), true, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

// Current session of the user, apperrors.ErrSessionNotFound if there is none
func (s *AuthService) GetSession(ctx context.Context, userID uuid.UUID) (models.Session, error) {
	return s.storage.Session().GetSession(ctx, userID)
}

// Mint both tokens against one instant and overwrite user session with their digests
func (s *AuthService) startSession(ctx context.Context, user models.User, now time.Time) (models.TokenPair, error) {
	access, err := s.tokens.Issue(user.Email, tokenmanager.KindAccess, now)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	refresh, err := s.tokens.Issue(user.Email, tokenmanager.KindRefresh, now)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	err = s.storage.Session().SetSession(ctx, models.Session{
		UserID:           user.ID,
		AccessHash:       digest(access.Value),
		AccessExpiresAt:  access.ExpiresAt,
		RefreshHash:      digest(refresh.Value),
		RefreshExpiresAt: refresh.ExpiresAt,
	})
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{
		Access:    access,
		Refresh:   refresh,
		TokenType: models.TokenTypeBearer,
	}, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(uuid.NewString())
	})
	return s.dummyHash
}
