package domain

import "time"

// Session represents an issued access token stored in Redis. Its ID is the token's jti,
// so deleting the session revokes the token.
type Session struct {
	ID        string    `json:"id"`
	UserID    ID        `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}

// Identity is the authenticated caller as carried by a verified access token.
type Identity struct {
	UserID    ID     `json:"sub"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	SessionID string `json:"-"`
}
