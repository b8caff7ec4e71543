package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	return NewService(Config{
		JWTSecret:         "test-secret",
		TokenDuration:     time.Hour,
		BCryptCost:        bcrypt.MinCost,
		AdminUser:         "admin",
		AdminPasswordHash: string(hash),
	})
}

func TestPasswordHashing(t *testing.T) {
	s := newTestService(t)

	hash, err := s.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "correct horse" {
		t.Error("Expected hash to differ from the password")
	}
	if err := s.ComparePassword(hash, "correct horse"); err != nil {
		t.Errorf("Expected password to match, got %v", err)
	}
	if err := s.ComparePassword(hash, "wrong"); err == nil {
		t.Error("Expected mismatch for wrong password")
	}
}

func TestLogin(t *testing.T) {
	s := newTestService(t)

	t.Run("Valid credentials", func(t *testing.T) {
		token, err := s.Login("admin", "hunter2")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		claims, err := s.ValidateToken(token)
		if err != nil {
			t.Fatalf("ValidateToken failed: %v", err)
		}
		if claims.Username != "admin" || claims.Role != RoleAdmin {
			t.Errorf("Unexpected claims %+v", claims)
		}
	})

	t.Run("Wrong password", func(t *testing.T) {
		if _, err := s.Login("admin", "nope"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Wrong user", func(t *testing.T) {
		if _, err := s.Login("root", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Not configured", func(t *testing.T) {
		s := NewService(Config{JWTSecret: "x"})
		if _, err := s.Login("admin", "hunter2"); !errors.Is(err, ErrLoginDisabled) {
			t.Errorf("Expected ErrLoginDisabled, got %v", err)
		}
	})
}

func TestValidateToken(t *testing.T) {
	s := newTestService(t)

	t.Run("Wrong secret", func(t *testing.T) {
		other := NewService(Config{JWTSecret: "other-secret"})
		token, _ := other.GenerateToken("admin", RoleAdmin)
		if _, err := s.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		token, _ := s.GenerateToken("admin", RoleAdmin)
		s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { s.now = time.Now }()

		if _, err := s.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, err := s.ValidateToken("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		user, required string
		want           bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleViewer, true},
		{RoleViewer, RoleAdmin, false},
		{RoleViewer, RoleViewer, true},
		{"guest", RoleViewer, false},
	}

	for _, tt := range tests {
		if got := HasRole(tt.user, tt.required); got != tt.want {
			t.Errorf("HasRole(%q, %q) = %v, expected %v", tt.user, tt.required, got, tt.want)
		}
	}

	if !CanTriggerRefresh(RoleAdmin) || CanTriggerRefresh(RoleViewer) {
		t.Error("Expected only admins to trigger refreshes")
	}
	if !IsAdmin(RoleAdmin) || IsAdmin(RoleViewer) || IsAdmin("") {
		t.Error("Expected only the admin role to be admin")
	}
}
