package logging

import (
	"strings"
	"testing"
)

func TestAnonymizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{"regular address", "alice@example.com"},
		{"plus address", "alice+tag@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnonymizeEmail(tt.email)
			if !strings.HasPrefix(got, "user:") {
				t.Errorf("expected user: prefix, got %q", got)
			}
			if strings.Contains(got, "@") {
				t.Errorf("anonymized email contains raw address: %q", got)
			}
			// Hashing must be deterministic for correlation.
			if got != AnonymizeEmail(tt.email) {
				t.Error("expected deterministic hash")
			}
		})
	}

	if AnonymizeEmail("") != "" {
		t.Error("expected empty result for empty input")
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken(""); got != "<empty>" {
		t.Errorf("expected <empty>, got %q", got)
	}
	got := SanitizeToken("ya29.secret-token")
	if strings.Contains(got, "secret") {
		t.Errorf("sanitized token leaks content: %q", got)
	}
	if got != "[token:17 chars]" {
		t.Errorf("unexpected sanitized form: %q", got)
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"alice@example.com", "example.com"},
		{"no-at-sign", ""},
		{"", ""},
		{"two@at@signs", ""},
	}

	for _, tt := range tests {
		if got := ExtractDomain(tt.email); got != tt.want {
			t.Errorf("ExtractDomain(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}

func TestErrNilSafe(t *testing.T) {
	attr := Err(nil)
	if attr.Key != "" {
		t.Errorf("expected empty group for nil error, got key %q", attr.Key)
	}
}
