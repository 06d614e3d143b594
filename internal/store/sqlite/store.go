// Package sqlite persists users, monitors, alert history, and user
// preferences in a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"fxmonitor/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a queried row does not exist.
var ErrNotFound = errors.New("sqlite: not found")

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/fxmonitor.db"
}

// Store is a single-writer SQLite store with WAL journaling.
type Store struct {
	db  *sql.DB
	log *logrus.Entry
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database, enables WAL mode, and creates the schema.
func New(cfg Config, log *logrus.Entry) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.WithField("path", cfg.DBPath).Info("sqlite opened")
	return &Store{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			email         TEXT    NOT NULL UNIQUE,
			password_hash TEXT    NOT NULL,
			totp_secret   TEXT    NOT NULL DEFAULT '',
			created_at    INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS monitors (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(id),
			pair       TEXT    NOT NULL,
			kind       TEXT    NOT NULL,
			params     TEXT    NOT NULL DEFAULT '{}',
			enabled    INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_monitors_enabled ON monitors(enabled, pair);

		CREATE TABLE IF NOT EXISTS alerts (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id      INTEGER NOT NULL,
			pair         TEXT    NOT NULL,
			kind         TEXT    NOT NULL,
			message      TEXT    NOT NULL,
			payload      TEXT    NOT NULL DEFAULT '{}',
			triggered_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_user_ts ON alerts(user_id, triggered_at DESC);

		CREATE TABLE IF NOT EXISTS preferences (
			user_id INTEGER NOT NULL,
			key     TEXT    NOT NULL,
			value   TEXT    NOT NULL,
			PRIMARY KEY (user_id, key)
		);
	`)
	return err
}

// ────────────────────────────────────────────────────────────
// Users
// ────────────────────────────────────────────────────────────

// CreateUser inserts a new user and returns its ID.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, created_at) VALUES (?, ?, ?)`,
		email, passwordHash, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite insert user: %w", err)
	}
	return res.LastInsertId()
}

// UserByEmail looks a user up by email. Returns ErrNotFound when absent.
func (s *Store) UserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, totp_secret, created_at FROM users WHERE email = ?`,
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.TOTPSecret, &created)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("sqlite query user: %w", err)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}

// UserByID looks a user up by ID. Returns ErrNotFound when absent.
func (s *Store) UserByID(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, totp_secret, created_at FROM users WHERE id = ?`,
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.TOTPSecret, &created)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("sqlite query user: %w", err)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}

// SetTOTPSecret stores the user's confirmed TOTP secret.
func (s *Store) SetTOTPSecret(ctx context.Context, userID int64, secret string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = ? WHERE id = ?`, secret, userID)
	if err != nil {
		return fmt.Errorf("sqlite set totp secret: %w", err)
	}
	return nil
}

// ────────────────────────────────────────────────────────────
// Monitors
// ────────────────────────────────────────────────────────────

// SaveMonitor inserts a monitor and returns its ID.
func (s *Store) SaveMonitor(ctx context.Context, m model.Monitor) (int64, error) {
	params := string(m.Params)
	if params == "" {
		params = "{}"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO monitors (user_id, pair, kind, params, enabled, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.UserID, m.Pair, m.Kind, params, boolToInt(m.Enabled), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite insert monitor: %w", err)
	}
	return res.LastInsertId()
}

// SetMonitorEnabled toggles a monitor owned by the given user.
func (s *Store) SetMonitorEnabled(ctx context.Context, userID, monitorID int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE monitors SET enabled = ? WHERE id = ? AND user_id = ?`,
		boolToInt(enabled), monitorID, userID)
	if err != nil {
		return fmt.Errorf("sqlite update monitor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMonitor removes a monitor owned by the given user.
func (s *Store) DeleteMonitor(ctx context.Context, userID, monitorID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM monitors WHERE id = ? AND user_id = ?`, monitorID, userID)
	if err != nil {
		return fmt.Errorf("sqlite delete monitor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MonitorsForUser returns all monitors owned by a user, newest first.
func (s *Store) MonitorsForUser(ctx context.Context, userID int64) ([]model.Monitor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, pair, kind, params, enabled, created_at
		 FROM monitors WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query monitors: %w", err)
	}
	defer rows.Close()
	return scanMonitors(rows)
}

// EnabledMonitors returns every enabled monitor across all users.
// The poll loop evaluates these each cycle.
func (s *Store) EnabledMonitors(ctx context.Context) ([]model.Monitor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, pair, kind, params, enabled, created_at
		 FROM monitors WHERE enabled = 1 ORDER BY pair, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query enabled monitors: %w", err)
	}
	defer rows.Close()
	return scanMonitors(rows)
}

func scanMonitors(rows *sql.Rows) ([]model.Monitor, error) {
	var out []model.Monitor
	for rows.Next() {
		var m model.Monitor
		var params string
		var enabled int
		var created int64
		if err := rows.Scan(&m.ID, &m.UserID, &m.Pair, &m.Kind, &params, &enabled, &created); err != nil {
			return nil, fmt.Errorf("sqlite scan monitor: %w", err)
		}
		m.Params = []byte(params)
		m.Enabled = enabled != 0
		m.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// ────────────────────────────────────────────────────────────
// Alerts
// ────────────────────────────────────────────────────────────

// RecordAlert appends a delivered alert to the history.
func (s *Store) RecordAlert(ctx context.Context, a model.AlertRecord) (int64, error) {
	payload := string(a.Payload)
	if payload == "" {
		payload = "{}"
	}
	ts := a.TriggeredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (user_id, pair, kind, message, payload, triggered_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Pair, a.Kind, a.Message, payload, ts.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite insert alert: %w", err)
	}
	return res.LastInsertId()
}

// RecentAlerts returns a user's latest alerts, newest first.
func (s *Store) RecentAlerts(ctx context.Context, userID int64, limit int) ([]model.AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, pair, kind, message, payload, triggered_at
		 FROM alerts WHERE user_id = ? ORDER BY triggered_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query alerts: %w", err)
	}
	defer rows.Close()

	var out []model.AlertRecord
	for rows.Next() {
		var a model.AlertRecord
		var payload string
		var ts int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.Pair, &a.Kind, &a.Message, &payload, &ts); err != nil {
			return nil, fmt.Errorf("sqlite scan alert: %w", err)
		}
		a.Payload = []byte(payload)
		a.TriggeredAt = time.Unix(ts, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// PruneAlerts deletes alert rows older than the retention window.
func (s *Store) PruneAlerts(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE triggered_at < ?`, olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite prune alerts: %w", err)
	}
	return res.RowsAffected()
}

// ────────────────────────────────────────────────────────────
// Preferences
// ────────────────────────────────────────────────────────────

// SetPreference upserts one user preference key.
func (s *Store) SetPreference(ctx context.Context, userID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (user_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value`,
		userID, key, value)
	if err != nil {
		return fmt.Errorf("sqlite set preference: %w", err)
	}
	return nil
}

// Preference reads one user preference, returning fallback when unset.
func (s *Store) Preference(ctx context.Context, userID int64, key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE user_id = ? AND key = ?`,
		userID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite query preference: %w", err)
	}
	return value, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
