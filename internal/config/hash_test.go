package config

import (
	"strings"
	"testing"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("log:\n  level: debug\n"))
	b := Fingerprint([]byte("log:\n  level: debug\n"))
	c := Fingerprint([]byte("log:\n  level: info\n"))

	if !strings.HasPrefix(a, "blake3:") {
		t.Fatalf("Fingerprint() = %q, want blake3: prefix", a)
	}
	if len(a) != len("blake3:")+64 {
		t.Fatalf("len(Fingerprint()) = %d, want %d", len(a), len("blake3:")+64)
	}
	if a != b {
		t.Fatal("same input produced different fingerprints")
	}
	if a == c {
		t.Fatal("different input produced the same fingerprint")
	}
}
