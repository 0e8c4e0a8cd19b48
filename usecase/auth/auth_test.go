package auth

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/repository/memory"
)

func newUseCase(t *testing.T) (*UseCase, *memory.UserRepository) {
	t.Helper()
	users := memory.NewUserRepository()
	sessions := memory.NewSessionRepository(time.Hour)
	return New(users, sessions, NewTokenManager("test-secret", "tasktracker", time.Hour), nil), users
}

func signUp(t *testing.T, uc *UseCase) string {
	t.Helper()
	token, err := uc.SignUp(context.Background(), SignUpInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     " Ada@Example.com ",
		Password:  "Secret123",
		Image:     []byte{0x89, 'P', 'N', 'G'},
	})
	require.NoError(t, err)
	return token
}

func TestSignUpStoresNormalizedUser(t *testing.T) {
	uc, users := newUseCase(t)
	token := signUp(t, uc)

	user, err := users.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123", user.PasswordHash)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'}), user.Image)

	identity, err := uc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, "Ada", identity.FirstName)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.NotEmpty(t, identity.SessionID)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	uc, _ := newUseCase(t)
	signUp(t, uc)

	_, err := uc.SignUp(context.Background(), SignUpInput{FirstName: "A", LastName: "B", Email: "ADA@example.com", Password: "Secret123"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	uc, _ := newUseCase(t)
	signUp(t, uc)
	ctx := context.Background()

	token, err := uc.Login(ctx, "ada@example.com", "Secret123")
	require.NoError(t, err)
	_, err = uc.Verify(ctx, token)
	require.NoError(t, err)

	_, err = uc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrWrongCredentials)
	_, err = uc.Login(ctx, "nobody@example.com", "Secret123")
	assert.ErrorIs(t, err, domain.ErrWrongCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	uc, _ := newUseCase(t)
	ctx := context.Background()
	token := signUp(t, uc)
	identity, err := uc.Verify(ctx, token)
	require.NoError(t, err)

	require.NoError(t, uc.Logout(ctx, *identity))
	_, err = uc.Verify(ctx, token)
	assert.Equal(t, domain.ErrCodeUnauthorized, domain.CodeOf(err))
}

func TestRefreshKeepsSession(t *testing.T) {
	uc, _ := newUseCase(t)
	ctx := context.Background()
	identity, err := uc.Verify(ctx, signUp(t, uc))
	require.NoError(t, err)

	refreshed, err := uc.Refresh(ctx, *identity)
	require.NoError(t, err)
	again, err := uc.Verify(ctx, refreshed)
	require.NoError(t, err)
	assert.Equal(t, identity.SessionID, again.SessionID)
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	uc, _ := newUseCase(t)
	ctx := context.Background()
	signUp(t, uc)

	other := NewTokenManager("another-secret", "tasktracker", time.Hour)
	forged, err := other.Issue(domain.Identity{UserID: domain.NewID()}, "session", time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	for name, token := range map[string]string{"garbage": "not.a.token", "wrong key": forged} {
		t.Run(name, func(t *testing.T) {
			_, err := uc.Verify(ctx, token)
			assert.Equal(t, domain.ErrCodeUnauthorized, domain.CodeOf(err))
		})
	}
}

func TestTokenManagerExpiry(t *testing.T) {
	m := NewTokenManager("s", "iss", time.Hour)
	past := time.Now().Add(-2 * time.Hour)
	token, err := m.Issue(domain.Identity{UserID: domain.NewID()}, "sid", past, past.Add(time.Hour))
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.Equal(t, domain.ErrCodeUnauthorized, domain.CodeOf(err))
}

func TestTokenManagerIssuer(t *testing.T) {
	now := time.Now()
	token, err := NewTokenManager("s", "someone-else", time.Hour).Issue(domain.Identity{UserID: domain.NewID()}, "sid", now, now.Add(time.Hour))
	require.NoError(t, err)

	_, err = NewTokenManager("s", "iss", time.Hour).Parse(token)
	assert.Equal(t, domain.ErrCodeUnauthorized, domain.CodeOf(err))
}
