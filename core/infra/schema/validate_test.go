package schema

import (
	"encoding/json"
	"strings"
	"testing"
)

const testSchema = `{
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "count": {"type": "integer", "minimum": 0}
  }
}`

func TestValidateAccepts(t *testing.T) {
	payload := map[string]any{"name": "rule", "count": 3}
	if err := Validate("test", []byte(testSchema), payload); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	payload := map[string]any{"count": 3}
	err := Validate("test", []byte(testSchema), payload)
	if err == nil || !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestValidateRawJSON(t *testing.T) {
	raw := json.RawMessage(`{"name":"x"}`)
	if err := Validate("test", []byte(testSchema), raw); err != nil {
		t.Fatalf("unexpected error for raw json: %v", err)
	}
}

func TestValidateBadSchema(t *testing.T) {
	if err := Validate("test", []byte(`{`), map[string]any{}); err == nil {
		t.Fatalf("expected error for malformed schema")
	}
	if err := Validate("test", nil, map[string]any{}); err == nil {
		t.Fatalf("expected error for empty schema")
	}
}

func TestValidateYAMLDecodedValue(t *testing.T) {
	// yaml.v3 produces map[string]any with interface values; these must
	// survive the JSON round trip.
	payload := map[string]any{"name": "y", "count": any(1)}
	if err := Validate("test", []byte(testSchema), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
