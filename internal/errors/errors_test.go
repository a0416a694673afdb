package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeRunNotFound, "test error message")

	if err.Code != ErrCodeRunNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeRunNotFound, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeStoreRead, "failed to read plan", cause)

	if err.Code != ErrCodeStoreRead {
		t.Errorf("expected code %s, got %s", ErrCodeStoreRead, err.Code)
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		want    []string
		notWant []string
	}{
		{
			name:    "simple error",
			err:     New(ErrCodePlanInvalid, "invalid plan"),
			want:    []string{"[PLAN-001]", "invalid plan"},
			notWant: []string{"Suggestions:"},
		},
		{
			name: "error with cause",
			err:  Wrap(ErrCodeStoreWrite, "write failed", fmt.Errorf("disk full")),
			want: []string{"[STORE-002]", "write failed: disk full"},
		},
		{
			name: "error with suggestions",
			err:  New(ErrCodeEmptyRequest, "empty").WithSuggestions("first", "second"),
			want: []string{"Suggestions:", "• first", "• second"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, w := range tt.want {
				if !strings.Contains(msg, w) {
					t.Errorf("expected %q in %q", w, msg)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(msg, w) {
					t.Errorf("did not expect %q in %q", w, msg)
				}
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", NewRunNotFoundError("alpha", "r1"))

	if got := CodeOf(wrapped); got != ErrCodeRunNotFound {
		t.Errorf("expected %s, got %s", ErrCodeRunNotFound, got)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != "" {
		t.Errorf("expected empty code, got %s", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("expected empty code for nil, got %s", got)
	}
}

func TestHasCode(t *testing.T) {
	inner := NewRunNotFoundError("alpha", "r1")
	outer := Wrap(ErrCodeStoreRead, "load plan", inner)

	if !HasCode(outer, ErrCodeStoreRead) {
		t.Errorf("expected outer code to match")
	}
	if !HasCode(outer, ErrCodeRunNotFound) {
		t.Errorf("expected nested code to match")
	}
	if HasCode(outer, ErrCodeEmptyRequest) {
		t.Errorf("unexpected match for unrelated code")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		code ErrorCode
	}{
		{"run not found", NewRunNotFoundError("p", "r"), ErrCodeRunNotFound},
		{"empty request", NewEmptyRequestError(), ErrCodeEmptyRequest},
		{"bad request", NewBadRequestError("not json"), ErrCodeBadRequest},
		{"invalid mutation", NewInvalidMutationError("reprioritize", "order must be a list"), ErrCodeInvalidMutation},
		{"unknown mode", NewUnknownModeError("explode"), ErrCodeUnknownMode},
		{"project not found", NewProjectNotFoundError("p"), ErrCodeProjectNotFound},
		{"project exists", NewProjectExistsError("p"), ErrCodeProjectExists},
		{"provider auth", NewProviderAuthError("openai"), ErrCodeProviderAuth},
		{"rate limit", NewProviderRateLimitError("openai", "5s"), ErrCodeProviderRateLimit},
		{"config", NewConfigInvalidError("bad"), ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.Message == "" {
				t.Errorf("expected non-empty message")
			}
		})
	}
}
