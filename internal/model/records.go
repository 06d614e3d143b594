package model

import (
	"encoding/json"
	"time"
)

// User is a registered account. TOTPSecret is empty until two-factor
// enrollment completes.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	TOTPSecret   string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Monitor is a persisted condition watch: one user, one pair, one
// condition kind with its parameters.
type Monitor struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Pair      string          `json:"pair"`
	Kind      string          `json:"kind"`
	Params    json.RawMessage `json:"params"`
	Enabled   bool            `json:"enabled"`
	CreatedAt time.Time       `json:"created_at"`
}

// AlertRecord is one delivered alert, kept for history queries.
type AlertRecord struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Pair        string          `json:"pair"`
	Kind        string          `json:"kind"`
	Message     string          `json:"message"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	TriggeredAt time.Time       `json:"triggered_at"`
}
