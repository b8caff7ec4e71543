package fetcherr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorIs(t *testing.T) {
	t.Run("Kind and cause are both reachable", func(t *testing.T) {
		err := New(ErrTransport, "states", context.DeadlineExceeded).WithStatus(0)

		if !errors.Is(err, ErrTransport) {
			t.Error("Expected errors.Is(err, ErrTransport) to be true")
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Error("Expected errors.Is(err, context.DeadlineExceeded) to be true")
		}
		if errors.Is(err, ErrAuth) {
			t.Error("Expected errors.Is(err, ErrAuth) to be false")
		}
	})

	t.Run("Survives fmt.Errorf wrapping", func(t *testing.T) {
		inner := New(ErrNotFound, "flight-info", nil).WithIdent("DLH445")
		err := fmt.Errorf("enrich: %w", inner)

		if !errors.Is(err, ErrNotFound) {
			t.Error("Expected wrapped error to match ErrNotFound")
		}

		fe, ok := Details(err)
		if !ok {
			t.Fatal("Expected Details to find *Error")
		}
		if fe.Ident != "DLH445" {
			t.Errorf("Expected ident DLH445, got %s", fe.Ident)
		}
	})
}

func TestErrorMessage(t *testing.T) {
	err := New(ErrAuth, "token", errors.New("connection refused")).
		WithStatus(503).
		WithEndpoint("https://auth.example/token")

	msg := err.Error()
	for _, want := range []string{"token", "authentication failed", "503", "connection refused"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected message to contain %q, got %q", want, msg)
		}
	}
	if strings.Contains(msg, "auth.example") {
		t.Errorf("Expected endpoint to be kept out of the message, got %q", msg)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"Auth", New(ErrAuth, "token", nil), ErrAuth},
		{"Parse", fmt.Errorf("x: %w", New(ErrParse, "states", nil)), ErrParse},
		{"Bare sentinel", ErrBudgetExceeded, ErrBudgetExceeded},
		{"Unclassified", errors.New("boom"), nil},
		{"Nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
