package digest

import (
	"errors"
	"testing"
)

func TestHashers_KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		algo string
		want string
	}{
		{"sha256 abc", SHA256, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"sha3-256 abc", SHA3_256, "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := New(tt.algo)
			if err != nil {
				t.Fatalf("New(%q) failed: %v", tt.algo, err)
			}
			if h.Name() != tt.algo {
				t.Errorf("Name() = %s, want %s", h.Name(), tt.algo)
			}
			got := h.Sum([]byte("abc")).String()
			if got != tt.want {
				t.Errorf("Sum(abc) = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNew_DefaultAndUnknown(t *testing.T) {
	h, err := New("")
	if err != nil {
		t.Fatalf("New(\"\") failed: %v", err)
	}
	if h.Name() != SHA256 {
		t.Errorf("default hasher = %s, want %s", h.Name(), SHA256)
	}

	_, err = New("md5")
	if !errors.Is(err, ErrUnknownHasher) {
		t.Errorf("Expected ErrUnknownHasher, got %v", err)
	}
}

func TestDigest_ParseRoundTrip(t *testing.T) {
	d := Default().Sum([]byte("chain"))

	parsed, err := Parse(d.String())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed != d {
		t.Errorf("Parse(String()) = %s, want %s", parsed, d)
	}

	if _, err := Parse("abcd"); err == nil {
		t.Error("Expected error for short digest")
	}
	if _, err := Parse("zz"); err == nil {
		t.Error("Expected error for invalid hex")
	}
}

func TestDigest_Zero(t *testing.T) {
	if !Zero.IsZero() {
		t.Error("Zero should report IsZero")
	}
	if Default().Sum(nil).IsZero() {
		t.Error("digest of empty input should not be zero")
	}
	if Zero.Base58() != "11111111111111111111111111111111" {
		t.Errorf("Zero.Base58() = %s", Zero.Base58())
	}
}
