package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is a profile served by the user API.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PutUser inserts or replaces u. UpdatedAt is set to now.
func (s *DB) PutUser(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO users(id, name, email, updated_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, formatTime(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to store user %d: %w", u.ID, err)
	}
	return nil
}

// User loads a user by id.
func (s *DB) User(ctx context.Context, id int64) (*User, error) {
	var (
		u       User
		updated string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, updated_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("user %d: bad updated_at: %w", id, err)
	}
	return &u, nil
}
