package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskflow-dev/todo-backend/pkg/apperrors"
)

// UserBase holds the fields shared by every user projection.
type UserBase struct {
	Email string  `json:"email"`
	Name  *string `json:"name,omitempty"`
}

// User is the stored user record.
// Email is unique across users.
type User struct {
	ID string `json:"id"`
	UserBase
	// HashedPassword is optional for accounts created before passwords were stored.
	HashedPassword *string   `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserCreate is the payload for creating a user.
type UserCreate struct {
	UserBase
	Password string `json:"password"`
}

// UserUpdate is a partial update; nil fields are left unchanged.
type UserUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// UserResponse is the public projection of a user.
type UserResponse struct {
	ID string `json:"id"`
	UserBase
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the create payload.
func (c *UserCreate) Validate() error {
	if err := validateEmail(c.Email); err != nil {
		return err
	}
	if c.Password == "" {
		return fmt.Errorf("%w: password is required", apperrors.ErrInvalidInput)
	}
	return nil
}

// NewUser builds a user record from a create payload with a fresh ID and timestamps.
// The password is not copied; hashing it is the caller's job.
func NewUser(c UserCreate) *User {
	now := time.Now().UTC()
	return &User{
		ID: uuid.NewString(),
		UserBase: UserBase{
			Email: strings.TrimSpace(c.Email),
			Name:  cloneString(c.Name),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the fields present in the update.
func (u *UserUpdate) Validate() error {
	if u.Email != nil {
		return validateEmail(*u.Email)
	}
	return nil
}

// IsEmpty reports whether the update changes nothing.
func (u *UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil
}

// Apply copies the present fields onto user and bumps UpdatedAt.
func (u *UserUpdate) Apply(user *User) {
	if u.IsEmpty() {
		return
	}
	if u.Name != nil {
		user.Name = cloneString(u.Name)
	}
	if u.Email != nil {
		user.Email = strings.TrimSpace(*u.Email)
	}
	user.UpdatedAt = time.Now().UTC()
}

// ToResponse returns the public projection of the user.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID: u.ID,
		UserBase: UserBase{
			Email: u.Email,
			Name:  cloneString(u.Name),
		},
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", apperrors.ErrInvalidInput)
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("%w: email %q is not valid", apperrors.ErrInvalidInput, email)
	}
	return nil
}
