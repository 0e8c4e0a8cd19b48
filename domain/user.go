package domain

import (
	"strings"
	"time"
)

// User represents an account that can create, own and be assigned tasks.
type User struct {
	ID            ID        `json:"id"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Image         string    `json:"image,omitempty"`
	Role          string    `json:"role,omitempty"`
	AssignedTasks []ID      `json:"assignedTasks"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// UserSummary is the password-free projection embedded in expanded task references.
type UserSummary struct {
	ID        ID     `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Image     string `json:"image,omitempty"`
	Role      string `json:"role,omitempty"`
}

func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Image:     u.Image,
		Role:      u.Role,
	}
}

// HasAssignedTask reports whether taskID is in the user's assigned set.
func (u *User) HasAssignedTask(taskID ID) bool {
	if u == nil {
		return false
	}
	for _, id := range u.AssignedTasks {
		if id == taskID {
			return true
		}
	}
	return false
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
