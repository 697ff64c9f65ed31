package logger

import (
	"reflect"
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"wallet_private_key", "4Nd1mXyz",
		"openrouter_api_key", "sk-or-123",
		"stage", "minting",
	})
	if out[1] != "[REDACTED]" || out[3] != "[REDACTED]" {
		t.Fatalf("secrets not redacted: %v", out)
	}
	if out[5] != "minting" {
		t.Fatalf("plain value changed: %v", out[5])
	}
}

func TestSanitizeKVsHashesWallet(t *testing.T) {
	const wallet = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	out := sanitizeKVs([]interface{}{"wallet", wallet})
	got, ok := out[1].(string)
	if !ok || !strings.HasPrefix(got, "hash:") || len(got) != len("hash:")+12 {
		t.Fatalf("wallet not hashed: %v", out[1])
	}
	again := sanitizeKVs([]interface{}{"wallet", wallet})
	if again[1] != got {
		t.Fatalf("hash not stable: %v vs %v", again[1], got)
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	in := []interface{}{"task_id", "abc", "dangling"}
	if out := sanitizeKVs(in); !reflect.DeepEqual(out, in) {
		t.Fatalf("sanitizeKVs = %v", out)
	}
}

func TestSanitizeNestedMap(t *testing.T) {
	out := sanitizeKVs([]interface{}{"request", map[string]interface{}{
		"authorization": "Bearer xyz",
		"model":         "dall-e-3",
	}})
	m, ok := out[1].(map[string]interface{})
	if !ok {
		t.Fatalf("nested value is %T", out[1])
	}
	if m["authorization"] != "[REDACTED]" || m["model"] != "dall-e-3" {
		t.Fatalf("nested map = %v", m)
	}
}
