package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"

	"fxmonitor/internal/logger"
	"fxmonitor/internal/model"
	"fxmonitor/internal/store/sqlite"
)

type fakeUserStore struct {
	users  map[string]model.User
	nextID int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]model.User), nextID: 1}
}

func (f *fakeUserStore) CreateUser(ctx context.Context, email, hash string) (int64, error) {
	if _, exists := f.users[email]; exists {
		return 0, errors.New("duplicate email")
	}
	id := f.nextID
	f.nextID++
	f.users[email] = model.User{ID: id, Email: email, PasswordHash: hash}
	return id, nil
}

func (f *fakeUserStore) UserByEmail(ctx context.Context, email string) (model.User, error) {
	u, ok := f.users[email]
	if !ok {
		return model.User{}, sqlite.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) SetTOTPSecret(ctx context.Context, userID int64, secret string) error {
	for email, u := range f.users {
		if u.ID == userID {
			u.TOTPSecret = secret
			f.users[email] = u
			return nil
		}
	}
	return sqlite.ErrNotFound
}

func testService(store UserStore) *Service {
	return New(store, time.Hour, "fxmonitor-test", logger.Init("auth-test", logrus.ErrorLevel))
}

func TestRegisterAndLogin(t *testing.T) {
	store := newFakeUserStore()
	svc := testService(store)
	ctx := context.Background()

	id, err := svc.Register(ctx, "User@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}

	// Email is normalized on both paths.
	token, err := svc.Login(ctx, "user@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	uid, email, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if uid != 1 || email != "user@example.com" {
		t.Errorf("session = %d %q", uid, email)
	}
}

func TestLogin_Failures(t *testing.T) {
	store := newFakeUserStore()
	svc := testService(store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "user@example.com", "correct horse"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, "user@example.com", "wrong", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "correct horse", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: %v, want ErrInvalidCredentials", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := testService(newFakeUserStore())
	ctx := context.Background()
	var ipe *model.InvalidParameterError

	if _, err := svc.Register(ctx, "not-an-email", "correct horse"); !errors.As(err, &ipe) {
		t.Errorf("bad email: %v, want InvalidParameterError", err)
	}
	if _, err := svc.Register(ctx, "user@example.com", "short"); !errors.As(err, &ipe) {
		t.Errorf("short password: %v, want InvalidParameterError", err)
	}
}

func TestLogin_WithTOTP(t *testing.T) {
	store := newFakeUserStore()
	svc := testService(store)
	ctx := context.Background()

	id, err := svc.Register(ctx, "user@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	secret, url, err := svc.EnrollTOTP(ctx, id, "user@example.com")
	if err != nil {
		t.Fatalf("EnrollTOTP: %v", err)
	}
	if secret == "" || url == "" {
		t.Fatal("empty secret or provisioning URL")
	}

	// Password alone is no longer enough.
	if _, err := svc.Login(ctx, "user@example.com", "correct horse", ""); !errors.Is(err, ErrTOTPRequired) {
		t.Fatalf("missing code: %v, want ErrTOTPRequired", err)
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if _, err := svc.Login(ctx, "user@example.com", "correct horse", code); err != nil {
		t.Fatalf("login with valid code: %v", err)
	}

	if _, err := svc.Login(ctx, "user@example.com", "correct horse", "000000"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("bogus code: %v, want ErrInvalidCredentials", err)
	}
}

func TestSession_ExpiryAndLogout(t *testing.T) {
	store := newFakeUserStore()
	svc := New(store, time.Millisecond, "fxmonitor-test", logger.Init("auth-test", logrus.ErrorLevel))
	ctx := context.Background()

	if _, err := svc.Register(ctx, "user@example.com", "correct horse"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := svc.Login(ctx, "user@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if _, _, err := svc.Validate(token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expired session: %v, want ErrInvalidSession", err)
	}

	// Fresh session, then explicit logout.
	svc.sessionTTL = time.Hour
	token, err = svc.Login(ctx, "user@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	svc.Logout(token)
	if _, _, err := svc.Validate(token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("logged-out session: %v, want ErrInvalidSession", err)
	}
}
