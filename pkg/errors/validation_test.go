package errors

import (
	"strings"
	"testing"
)

func TestValidateNodeID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "start", false},
		{"with dash", "wait-for-input", false},
		{"with spaces", "Order placed", false},
		{"unicode", "état", false},

		{"empty", "", true},
		{"blank", "   ", true},
		{"too long", strings.Repeat("a", 300), true},
		{"newline", "foo\nbar", true},
		{"null byte", "foo\x00bar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNodeID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNodeID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateGraphTypeID(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"flowchart", false},
		{"state-machine", false},
		{"er_diagram.v2", false},
		{"", true},
		{"Flowchart", true},
		{"-flow", true},
		{"flow chart", true},
	}

	for _, tt := range tests {
		err := ValidateGraphTypeID(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateGraphTypeID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateFieldPath(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"label", false},
		{"meta.owner", false},
		{"transitions.0.to", false},
		{"", true},
		{"a..b", true},
		{".label", true},
		{"label.", true},
		{"a b", true},
		{"/meta/v1.2", false},
		{"/a~1b/c~0d", false},
		{"/", true},
		{"/a//b", true},
		{"/a~2", true},
		{"/a\nb", true},
	}

	for _, tt := range tests {
		err := ValidateFieldPath(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFieldPath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if err != nil && !Is(err, ErrCodeInvalidPath) {
			t.Errorf("ValidateFieldPath(%q) returned wrong error code: %v", tt.input, err)
		}
	}
}

func TestValidateDirection(t *testing.T) {
	for _, dir := range []string{"TB", "TD", "BT", "LR", "RL"} {
		if err := ValidateDirection(dir); err != nil {
			t.Errorf("ValidateDirection(%q) unexpected error: %v", dir, err)
		}
	}
	for _, dir := range []string{"", "lr", "UP", "LEFT"} {
		if err := ValidateDirection(dir); err == nil {
			t.Errorf("ValidateDirection(%q) expected error", dir)
		}
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "order.flow.yaml", false},
		{"valid nested", "docs/machines/door.sm.yaml", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 600)), true},
		{"absolute path", "/etc/passwd", true},
		{"path traversal", "../../../etc/passwd", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidatePath(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}
