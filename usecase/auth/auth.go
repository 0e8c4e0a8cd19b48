package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/pkg/logger"
	"github.com/fastygo/tasktracker/repository"
)

// SignUpInput is a validated registration request. Image holds the raw upload, if any.
type SignUpInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      string
	Image     []byte
}

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   *TokenManager
	now      func() time.Time
	logger   *zap.Logger
}

func New(users repository.UserRepository, sessions repository.SessionRepository, tokens *TokenManager, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		now:      time.Now,
		logger:   logger,
	}
}

// SignUp registers a user and returns an access token for them.
func (uc *UseCase) SignUp(ctx context.Context, in SignUpInput) (string, error) {
	hash, err := hashPassword(in.Password)
	if err != nil {
		return "", err
	}
	user := &domain.User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        domain.NormalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         strings.TrimSpace(in.Role),
	}
	if len(in.Image) > 0 {
		user.Image = base64.StdEncoding.EncodeToString(in.Image)
	}

	created, err := uc.users.Create(ctx, user)
	if err != nil {
		return "", err
	}
	logger.WithContext(ctx, uc.logger).Info("user signed up", zap.String("user_id", created.ID.String()))
	return uc.openSession(ctx, created)
}

// Login exchanges credentials for an access token. Unknown emails and wrong
// passwords fail the same way.
func (uc *UseCase) Login(ctx context.Context, email, password string) (string, error) {
	user, err := uc.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", domain.ErrWrongCredentials
	}
	if err != nil {
		return "", err
	}
	ok, err := checkPassword(user.PasswordHash, password)
	if err != nil {
		return "", domain.WrapError(domain.ErrCodeInternal, "password check failed", err)
	}
	if !ok {
		return "", domain.ErrWrongCredentials
	}
	return uc.openSession(ctx, user)
}

// Verify resolves an access token to its caller. The token's session must still exist.
func (uc *UseCase) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	identity, err := uc.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	session, err := uc.sessions.Get(ctx, identity.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	if session.IsExpired(uc.now()) || session.UserID != identity.UserID {
		return nil, domain.ErrSessionNotFound
	}
	return identity, nil
}

// Refresh extends the caller's session and returns a token with a new expiry.
func (uc *UseCase) Refresh(ctx context.Context, identity domain.Identity) (string, error) {
	ttl := uc.tokens.TTL()
	if err := uc.sessions.Extend(ctx, identity.SessionID, ttl); err != nil {
		return "", err
	}
	now := uc.now()
	return uc.tokens.Issue(identity, identity.SessionID, now, now.Add(ttl))
}

// Logout revokes the caller's session so the token stops verifying.
func (uc *UseCase) Logout(ctx context.Context, identity domain.Identity) error {
	if err := uc.sessions.Delete(ctx, identity.SessionID); err != nil {
		return err
	}
	logger.WithContext(ctx, uc.logger).Info("session revoked", zap.String("session_id", identity.SessionID))
	return nil
}

func (uc *UseCase) openSession(ctx context.Context, user *domain.User) (string, error) {
	now := uc.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.tokens.TTL()),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return "", err
	}
	identity := domain.Identity{
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	}
	return uc.tokens.Issue(identity, session.ID, now, session.ExpiresAt)
}
