package core

import "testing"

func TestRedactSensitiveMap(t *testing.T) {
	input := map[string]any{
		"client_id":     "client",
		"client_secret": "shh",
		"token":         "eyJ...",
		"tokenTypeId":   7,
		"operation_id":  "op-1",
		"nested": map[string]any{
			"Authorization": "Bearer eyJ...",
			"chain":         "MATIC",
		},
		"list": []any{map[string]any{"access_token": "eyJ..."}},
	}
	out := RedactSensitiveMap(input)

	if out["client_secret"] != RedactedValue || out["token"] != RedactedValue {
		t.Fatalf("expected secrets redacted, got %v", out)
	}
	if out["client_id"] != "client" || out["tokenTypeId"] != 7 || out["operation_id"] != "op-1" {
		t.Fatalf("expected identifiers kept, got %v", out)
	}
	nested := out["nested"].(map[string]any)
	if nested["Authorization"] != RedactedValue || nested["chain"] != "MATIC" {
		t.Fatalf("unexpected nested redaction %v", nested)
	}
	item := out["list"].([]any)[0].(map[string]any)
	if item["access_token"] != RedactedValue {
		t.Fatalf("expected list item redacted, got %v", item)
	}
	if input["client_secret"] != "shh" {
		t.Fatalf("expected input untouched")
	}
}
