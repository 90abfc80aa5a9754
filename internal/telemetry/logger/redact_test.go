package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestRedaction_ValuePrefix(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	l.Info("loaded", "admin", "dmak_0123456789abcdef")

	out := buf.String()
	if strings.Contains(out, "dmak_0123456789abcdef") {
		t.Errorf("plaintext API key leaked into log: %q", out)
	}
	if !strings.Contains(out, "dmak_") {
		t.Errorf("masked value should keep its prefix: %q", out)
	}
}

func TestRedaction_KeyPattern(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	l.Info("config", "api_key", "super-secret-value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["api_key"] != redactedValue {
		t.Errorf("api_key = %v, want %q", entry["api_key"], redactedValue)
	}
}

func TestMaskValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"long value keeps hints", "dmak_abcdefghijkl", "dmak_abc...jkl"},
		{"short value fully masked", "dmak_ab", "dmak_***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskValue(tt.value, "dmak_"); got != tt.want {
				t.Errorf("maskValue(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestRedactString(t *testing.T) {
	if got := RedactString("dmsk_searchonlykey123"); strings.Contains(got, "searchonlykey") {
		t.Errorf("RedactString leaked body: %q", got)
	}
	if got := RedactString("plain-value"); got != "plain-value" {
		t.Errorf("RedactString altered non-sensitive value: %q", got)
	}
}

func TestIsSensitiveKey(t *testing.T) {
	for key, want := range map[string]bool{
		"api_key":  true,
		"password": true,
		"Authorization": true,
		"peering_address": false,
		"nodes": false,
	} {
		if got := IsSensitiveKey(key); got != want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", key, got, want)
		}
	}
}
