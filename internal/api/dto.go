package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	TOTPCode string `json:"totp_code"`
}

// conditionSpec names a detector kind and its raw parameters; the
// server resolves it with detector.FromConfig.
type conditionSpec struct {
	Kind   string          `json:"kind" validate:"required"`
	Params json.RawMessage `json:"params"`
}

type monitorRequest struct {
	Pair    string          `json:"pair" validate:"required"`
	Kind    string          `json:"kind" validate:"required"`
	Params  json.RawMessage `json:"params"`
	Enabled *bool           `json:"enabled"`
}

type monitorToggleRequest struct {
	Enabled bool `json:"enabled"`
}

type preferenceRequest struct {
	Key   string `json:"key" validate:"required,max=64"`
	Value string `json:"value" validate:"max=1024"`
}

type monitoringRequest struct {
	Action string `json:"action" validate:"required,oneof=start stop"`
}

type evaluateRequest struct {
	Pair   string          `json:"pair" validate:"required"`
	Kind   string          `json:"kind" validate:"required"`
	Params json.RawMessage `json:"params"`

	// Since restricts evaluation to bars on or after this date,
	// RFC 3339 date ("2024-01-02"). Empty means the full series.
	Since string `json:"since" validate:"omitempty,datetime=2006-01-02"`
}

type exitSpec struct {
	MaxHoldingDays int            `json:"max_holding_days" validate:"min=0"`
	StopLossPct    float64        `json:"stop_loss_pct" validate:"min=0"`
	TakeProfitPct  float64        `json:"take_profit_pct" validate:"min=0"`
	Signal         *conditionSpec `json:"signal"`
}

type backtestRequest struct {
	Pair                string        `json:"pair" validate:"required"`
	Entry               conditionSpec `json:"entry" validate:"required"`
	Exit                exitSpec      `json:"exit"`
	InitialCapital      float64       `json:"initial_capital" validate:"gt=0"`
	AllowMultipleTrades bool          `json:"allow_multiple_trades"`

	// Since restricts the simulation to bars on or after this date.
	Since string `json:"since" validate:"omitempty,datetime=2006-01-02"`
}

var validate = validator.New()

// decodeJSON parses and validates a request body. Unknown fields are
// rejected so client typos surface as 400s instead of silent defaults.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("field %q fails %q validation", f.Field(), f.Tag())
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
