package core

import "strings"

const RedactedValue = "[REDACTED]"

// secretMarkers match field names that carry client secrets, bearer tokens
// or the application key.
var secretMarkers = []string{
	"secret",
	"password",
	"access_token",
	"accesstoken",
	"authorization",
	"bearer",
	"credential",
	"app_key",
}

// RedactSensitiveMap copies fields with secret-bearing values masked. Nested
// maps and slices are walked. The result is never nil.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if isSecretKey(key) {
			out[key] = RedactedValue
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return RedactSensitiveMap(v)
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, item := range v {
			if isSecretKey(key) {
				item = RedactedValue
			}
			out[key] = item
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redactValue(item)
		}
		return out
	}
	return value
}

func isSecretKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "token" {
		return true
	}
	for _, marker := range secretMarkers {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
