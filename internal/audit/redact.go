package audit

import (
	"encoding/json"
	"strings"
)

// sensitiveFragments flag payload field names whose values must never
// reach the audit trail.
var sensitiveFragments = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"private_key",
	"client_secret",
	"authorization",
	"signature",
	"credential",
}

const redactedValue = "[REDACTED]"

// Redact returns a copy of the payload with values of known-sensitive
// field names replaced, recursively through nested objects and arrays.
// Payloads that are not JSON objects come back unchanged.
func Redact(payload json.RawMessage) json.RawMessage {
	if len(payload) == 0 {
		return payload
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return payload
	}

	redacted, changed := redactValue(doc)
	if !changed {
		return payload
	}

	out, err := json.Marshal(redacted)
	if err != nil {
		return payload
	}
	return out
}

func redactValue(v any) (any, bool) {
	switch node := v.(type) {
	case map[string]any:
		changed := false
		for key, val := range node {
			if sensitiveKey(key) {
				node[key] = redactedValue
				changed = true
				continue
			}
			replaced, mutated := redactValue(val)
			if mutated {
				node[key] = replaced
				changed = true
			}
		}
		return node, changed
	case []any:
		changed := false
		for i, val := range node {
			replaced, mutated := redactValue(val)
			if mutated {
				node[i] = replaced
				changed = true
			}
		}
		return node, changed
	default:
		return v, false
	}
}

func sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
