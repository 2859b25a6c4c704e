// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxNameLength bounds customer names, in runes.
const MaxNameLength = 120

// Customer is a visitor who identified themselves.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeCustomer trims name and lowercases email, then validates both.
func NormalizeCustomer(name, email string) (string, string, error) {
	name = strings.Join(strings.Fields(name), " ")
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", "", fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidCustomer, MaxNameLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", "", fmt.Errorf("%w: email %q is not a plain address", ErrInvalidCustomer, email)
	}
	return name, email, nil
}

// UpsertCustomer inserts a customer, or updates the name of the one already
// registered under email. It returns the stored row.
func (s *Store) UpsertCustomer(ctx context.Context, name, email string) (*Customer, error) {
	name, email, err := NormalizeCustomer(name, email)
	if err != nil {
		return nil, err
	}

	now := millis(s.now())
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (id, name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
		RETURNING id, name, email, created_at, updated_at`,
		uuid.NewString(), name, email, now, now)

	c, err := scanCustomer(row)
	if err != nil {
		return nil, fmt.Errorf("%w: upsert customer: %v", ErrDatabaseError, err)
	}
	return c, nil
}

// GetCustomer returns the customer with id.
func (s *Store) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrCustomerNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at, updated_at FROM customers WHERE id = ?`, id)
	return lookupCustomer(row)
}

// FindCustomerByEmail returns the customer registered under email.
func (s *Store) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at, updated_at FROM customers WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	return lookupCustomer(row)
}

func lookupCustomer(row *sql.Row) (*Customer, error) {
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return c, nil
}

func scanCustomer(row *sql.Row) (*Customer, error) {
	var c Customer
	var created, updated int64
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &created, &updated); err != nil {
		return nil, err
	}
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	return &c, nil
}
