// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxDisplayNameLen = 64

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

// Profile is the display identity a client supplies when joining a meeting.
// It is untrusted input and is carried verbatim in membership broadcasts.
type Profile struct {
	Name string `json:"name"`
}

// NewProfile is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewProfile(name string) (*Profile, error) {
	if len(name) == 0 {
		return nil, ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &Profile{Name: name}, nil
}

// Account is a registered user as stored in the accounts database.
// Password holds the bcrypt hash, never the plaintext.
type Account struct {
	ID        string
	Email     string
	Name      string
	Password  string
	CreatedAt string
}
