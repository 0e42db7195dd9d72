package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"loancollect/database"
	"loancollect/models"
	"loancollect/utils"
)

func newLoginStore(t *testing.T) *database.MemoryStore {
	t.Helper()
	hash, err := utils.HashPassword("correct-horse", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	store := database.NewMemoryStore()
	store.AddUser(models.User{Name: "Ravi", Email: "ravi@example.com", Password: hash, IsAdmin: true})
	store.AddUser(models.User{Name: "Blocked", Email: "blocked@example.com", Password: hash, Blocked: true})
	return store
}

func TestLogin(t *testing.T) {
	s := NewUserService(newLoginStore(t), "test-secret", time.Hour)

	tests := []struct {
		name     string
		email    string
		password string
		status   int
		message  string
	}{
		{"wrong password", "ravi@example.com", "nope", http.StatusUnauthorized, "Wrong password"},
		{"blocked account", "blocked@example.com", "correct-horse", http.StatusForbidden, "Account blocked"},
		{"blocked account wrong password", "blocked@example.com", "nope", http.StatusForbidden, "Account blocked"},
		{"unknown user", "nobody@example.com", "correct-horse", http.StatusUnauthorized, "Invalid credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Login(context.Background(), tt.email, tt.password)
			var aerr *AuthError
			if !errors.As(err, &aerr) {
				t.Fatalf("err = %v, want AuthError", err)
			}
			if aerr.Status != tt.status || aerr.Message != tt.message {
				t.Errorf("got %d %q, want %d %q", aerr.Status, aerr.Message, tt.status, tt.message)
			}
		})
	}
}

func TestLoginSuccessIssuesToken(t *testing.T) {
	s := NewUserService(newLoginStore(t), "test-secret", time.Hour)

	res, err := s.Login(context.Background(), "  Ravi@Example.COM ", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Name != "Ravi" || !res.IsAdmin || res.ID == 0 {
		t.Errorf("result = %+v", res)
	}

	claims, err := ParseToken(res.Token, []byte("test-secret"))
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != res.ID || !claims.IsAdmin {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ParseToken(res.Token, []byte("other-secret")); err == nil {
		t.Error("token verified with the wrong key")
	}
}

func TestLoginValidationAndStoreErrors(t *testing.T) {
	store := newLoginStore(t)
	s := NewUserService(store, "test-secret", time.Hour)

	var verr *ValidationError
	if _, err := s.Login(context.Background(), "", "x"); !errors.As(err, &verr) || verr.Message != "Missing email or password" {
		t.Errorf("missing email err = %v", err)
	}

	store.FailOn["FindUserByEmail"] = errors.New("timeout")
	var serr *StoreError
	if _, err := s.Login(context.Background(), "ravi@example.com", "correct-horse"); !errors.As(err, &serr) {
		t.Errorf("store failure err = %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	s := NewUserService(newLoginStore(t), "test-secret", time.Minute)
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }

	res, err := s.Login(context.Background(), "ravi@example.com", "correct-horse")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(res.Token, []byte("test-secret")); err == nil {
		t.Error("expired token accepted")
	}
}
