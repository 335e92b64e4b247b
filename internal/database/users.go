package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const timeLayout = "2006-01-02T15:04:05Z"

const userColumns = "id, username, email, password_hash, last_login_at, created_at"

// CreateUser inserts a user and returns its ID. A taken username (compared
// case-insensitively) yields ErrUserExists.
func (db *DB) CreateUser(ctx context.Context, username string, email *string, passwordHash string) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		username, email, passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrUserExists
		}
		return 0, fmt.Errorf("inserting user: %w", err)
	}
	return result.LastInsertId()
}

// GetUserByUsername returns the user with the given name, or nil if none.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ? COLLATE NOCASE", username)
	return scanUserRow(row)
}

// GetUserByID returns the user with the given ID, or nil if none.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUserRow(row)
}

// ListUsers returns all users, oldest first.
func (db *DB) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user. It reports whether a row was deleted.
func (db *DB) DeleteUser(ctx context.Context, id int64) (bool, error) {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// TouchLogin records a successful login.
func (db *DB) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE users SET last_login_at = ? WHERE id = ?", at.UTC().Format(timeLayout), id)
	return err
}

// GetStats returns aggregate user statistics. Users who logged in within
// the last 30 days count as active.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	s := &Stats{}
	cutoff := time.Now().UTC().AddDate(0, 0, -30).Format(timeLayout)

	var lastSignup sql.NullString
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN last_login_at >= ? THEN 1 ELSE 0 END), 0),
		       MAX(created_at)
		FROM users`, cutoff,
	).Scan(&s.TotalUsers, &s.ActiveUsers, &lastSignup)
	if err != nil {
		return nil, err
	}
	if lastSignup.Valid {
		s.LastSignupAt = parseTime(lastSignup.String)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUserRow(row *sql.Row) (*User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanUser(s scanner) (*User, error) {
	var u User
	var lastLogin sql.NullString
	var created string
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &lastLogin, &created); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLoginAt = parseTime(lastLogin.String)
	}
	if t := parseTime(created); t != nil {
		u.CreatedAt = *t
	}
	return &u, nil
}

func parseTime(s string) *time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
