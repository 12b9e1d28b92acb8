package service

import (
	"testing"
	"unicode"
)

func TestGenerateTransferCode(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		code, err := GenerateTransferCode(12)
		if err != nil {
			t.Fatalf("GenerateTransferCode returned error: %v", err)
		}
		if len(code) != 12 {
			t.Fatalf("expected 12 characters, got %q", code)
		}
		for _, r := range code {
			if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
				t.Fatalf("non-alphanumeric rune %q in %q", r, code)
			}
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = struct{}{}
	}
}

func TestGenerateTransferCodeEnforcesMinimumLength(t *testing.T) {
	code, err := GenerateTransferCode(4)
	if err != nil {
		t.Fatalf("GenerateTransferCode returned error: %v", err)
	}
	if len(code) != minTransferCodeLength {
		t.Fatalf("expected minimum length %d, got %d", minTransferCodeLength, len(code))
	}
}

func TestGenerateVerificationCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateVerificationCode()
		if err != nil {
			t.Fatalf("GenerateVerificationCode returned error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			if !unicode.IsDigit(r) {
				t.Fatalf("non-digit in %q", code)
			}
		}
	}
}
