package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVs(t *testing.T) {
	jwt := "eyJhbGciOiJIUzI1NiJ9.eyJvd25lcl9pZCI6Im8xIn0.sig"
	out := sanitizeKVs([]interface{}{
		"COMPANION_TOKEN", "abc",
		"photo_base64", "AAAA",
		"owner_id", "owner-1",
		"header", jwt,
		"persona_key", "p1",
		"dangling",
	})
	if len(out) != 11 {
		t.Fatalf("len: want=11 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" || out[3] != "[REDACTED]" {
		t.Fatalf("secret keys not redacted: %v", out)
	}
	hashed, _ := out[5].(string)
	if !strings.HasPrefix(hashed, "hash:") || strings.Contains(hashed, "owner-1") {
		t.Fatalf("owner not hashed: %v", out[5])
	}
	if out[7] != "[REDACTED]" {
		t.Fatalf("jwt-looking value not redacted: %v", out[7])
	}
	if out[9] != "p1" || out[10] != "dangling" {
		t.Fatalf("plain values changed: %v", out)
	}
}

func TestHashValueStable(t *testing.T) {
	if hashValue("x") != hashValue("x") {
		t.Fatalf("hash should be deterministic")
	}
	if hashValue("") != "" {
		t.Fatalf("empty value should hash to empty")
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"test", "prod", "development"} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		l.With("component", "logger_test").Debug("hello", "k", "v")
	}
	Nop().Info("discarded", "k", 1)
}
