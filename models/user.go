package models

import "time"

type User struct {
	ID          int       `json:"id" db:"id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Email       string    `json:"email" db:"email"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Admin       bool      `json:"admin" db:"admin"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	PhotoKey *string `json:"-" db:"photo_key"`
	PhotoURL *string `json:"photo_url,omitempty" db:"-"`
}

// SignInCode is a pending one-time sign-in code for a phone number.
// Only the bcrypt hash of the code is ever stored.
type SignInCode struct {
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	CodeHash    string    `json:"-" db:"code_hash"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
