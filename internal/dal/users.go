// Package dal is the data access layer for the accounts database.
package dal

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/confab-live/confab/internal/domain"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("email or name already registered")
)

// CreateAccount inserts a new account and returns its generated id.
// The password must already be hashed by the caller.
func CreateAccount(conn *sql.DB, email, name, hashedPassword string) (string, error) {
	id := uuid.NewString()
	_, err := conn.Exec(
		"INSERT INTO users (id, email, name, password) VALUES (?, ?, ?, ?)",
		id, email, name, hashedPassword,
	)
	if err != nil {
		// sqlite reports unique violations as generic errors; the only
		// constraints on this table are the email/name uniqueness.
		return "", fmt.Errorf("%w: %v", ErrAccountExists, err)
	}
	return id, nil
}

func GetAccountByEmail(conn *sql.DB, email string) (*domain.Account, error) {
	var a domain.Account
	err := conn.QueryRow(
		"SELECT id, email, name, password, created_at FROM users WHERE email = ?",
		email,
	).Scan(&a.ID, &a.Email, &a.Name, &a.Password, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("error querying account: %w", err)
	}
	return &a, nil
}

func GetAccountByID(conn *sql.DB, id string) (*domain.Account, error) {
	var a domain.Account
	err := conn.QueryRow(
		"SELECT id, email, name, password, created_at FROM users WHERE id = ?",
		id,
	).Scan(&a.ID, &a.Email, &a.Name, &a.Password, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("error querying account: %w", err)
	}
	return &a, nil
}
