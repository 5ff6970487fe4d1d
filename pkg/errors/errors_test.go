package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeDomainNotFound, "no graph type for %s", "a.yaml")

	if err.Code != ErrCodeDomainNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeDomainNotFound)
	}

	if err.Message != "no graph type for a.yaml" {
		t.Errorf("Message = %v, want %v", err.Message, "no graph type for a.yaml")
	}

	expected := "DOMAIN_NOT_FOUND: no graph type for a.yaml"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := Wrap(ErrCodeInvalidSchema, cause, "compile flow.schema.json")

	if err.Code != ErrCodeInvalidSchema {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidSchema)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeNodeNotFound, "test"),
			code:     ErrCodeNodeNotFound,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeNodeNotFound, "test"),
			code:     ErrCodeGraphTypeConflict,
			expected: false,
		},
		{
			name:     "outer code of wrapped error",
			err:      Wrap(ErrCodeInvalidMapping, New(ErrCodeInvalidYAML, "inner"), "outer"),
			code:     ErrCodeInvalidMapping,
			expected: true,
		},
		{
			name:     "inner code of wrapped error",
			err:      Wrap(ErrCodeInvalidMapping, New(ErrCodeInvalidYAML, "inner"), "outer"),
			code:     ErrCodeInvalidYAML,
			expected: true,
		},
		{
			name:     "coded error behind fmt wrapping",
			err:      fmt.Errorf("resolve: %w", New(ErrCodeDomainNotFound, "x")),
			code:     ErrCodeDomainNotFound,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{"Error type", New(ErrCodeUnsupportedMappingVersion, "test"), ErrCodeUnsupportedMappingVersion},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeInvalidInput, "friendly message")); got != "friendly message" {
		t.Errorf("UserMessage() = %v, want %v", got, "friendly message")
	}
	if got := UserMessage(errors.New("plain error")); got != "plain error" {
		t.Errorf("UserMessage() = %v, want %v", got, "plain error")
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		code  Code
		fatal bool
	}{
		{ErrCodeUnsupportedMappingVersion, true},
		{ErrCodeMappingVersionMismatch, true},
		{ErrCodeGraphTypeConflict, true},
		{ErrCodeInvalidSchema, true},
		{ErrCodeDomainNotFound, false},
		{ErrCodeNodeNotFound, false},
	}

	for _, tt := range tests {
		if got := IsFatal(New(tt.code, "x")); got != tt.fatal {
			t.Errorf("IsFatal(%s) = %v, want %v", tt.code, got, tt.fatal)
		}
	}
	if IsFatal(errors.New("plain")) {
		t.Error("plain errors are never fatal")
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidPath,
		ErrCodeInvalidYAML,
		ErrCodeInvalidMapping,
		ErrCodeInvalidSchema,
		ErrCodeUnsupportedMappingVersion,
		ErrCodeMappingVersionMismatch,
		ErrCodeGraphTypeConflict,
		ErrCodeNotFound,
		ErrCodeDomainNotFound,
		ErrCodeNodeNotFound,
		ErrCodeFileNotFound,
		ErrCodeStaleGeneration,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
