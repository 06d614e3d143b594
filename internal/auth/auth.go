// Package auth handles account registration, password login, optional
// TOTP two-factor verification, and in-memory session tokens.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"fxmonitor/internal/model"
	"fxmonitor/internal/store/sqlite"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTOTPRequired       = errors.New("auth: totp code required")
	ErrInvalidSession     = errors.New("auth: invalid or expired session")
)

// UserStore is the persistence surface auth needs.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (int64, error)
	UserByEmail(ctx context.Context, email string) (model.User, error)
	SetTOTPSecret(ctx context.Context, userID int64, secret string) error
}

type session struct {
	userID  int64
	email   string
	expires time.Time
}

// Service issues and validates sessions against the user store.
type Service struct {
	store      UserStore
	sessionTTL time.Duration
	totpIssuer string
	log        *logrus.Entry

	mu       sync.RWMutex
	sessions map[string]session
}

// New creates an auth service.
func New(store UserStore, sessionTTL time.Duration, totpIssuer string, log *logrus.Entry) *Service {
	return &Service{
		store:      store,
		sessionTTL: sessionTTL,
		totpIssuer: totpIssuer,
		log:        log,
		sessions:   make(map[string]session),
	}
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password string) (int64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return 0, &model.InvalidParameterError{Field: "email", Reason: "must be a valid address"}
	}
	if len(password) < 8 {
		return 0, &model.InvalidParameterError{Field: "password", Reason: "must be at least 8 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("auth: hash password: %w", err)
	}

	id, err := s.store.CreateUser(ctx, email, string(hash))
	if err != nil {
		return 0, err
	}
	s.log.WithField("user_id", id).Info("user registered")
	return id, nil
}

// Login verifies the password (and TOTP code, when the account has one
// enrolled) and returns a session token.
func (s *Service) Login(ctx context.Context, email, password, totpCode string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			// Burn a comparison so missing accounts take as long as
			// wrong passwords.
			bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	if user.TOTPSecret != "" {
		if totpCode == "" {
			return "", ErrTOTPRequired
		}
		if !totp.Validate(totpCode, user.TOTPSecret) {
			return "", ErrInvalidCredentials
		}
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.sessions[token] = session{
		userID:  user.ID,
		email:   user.Email,
		expires: time.Now().Add(s.sessionTTL),
	}
	s.mu.Unlock()

	s.log.WithField("user_id", user.ID).Info("user logged in")
	return token, nil
}

// EnrollTOTP generates a new TOTP secret for the user and stores it.
// Returns the secret and the otpauth:// provisioning URL.
func (s *Service) EnrollTOTP(ctx context.Context, userID int64, account string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.totpIssuer,
		AccountName: account,
	})
	if err != nil {
		return "", "", fmt.Errorf("auth: generate totp: %w", err)
	}
	if err := s.store.SetTOTPSecret(ctx, userID, key.Secret()); err != nil {
		return "", "", err
	}
	s.log.WithField("user_id", userID).Info("totp enrolled")
	return key.Secret(), key.URL(), nil
}

// Validate resolves a session token to the owning user.
func (s *Service) Validate(token string) (userID int64, email string, err error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return 0, "", ErrInvalidSession
	}
	if time.Now().After(sess.expires) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return 0, "", ErrInvalidSession
	}
	return sess.userID, sess.email, nil
}

// Logout invalidates a session token.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: token entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
