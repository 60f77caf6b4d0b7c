package llm

import (
	"context"
	"testing"
)

func TestGeminiModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gemini-flash", "gemini-2.0-flash"},
		{"gemini-pro", "gemini-2.0-pro"},
		{"gemini-2.5-flash", "gemini-2.5-flash"}, // Pass-through
	}
	for _, tt := range tests {
		got := resolveModel(tt.input, geminiModels)
		if got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestGeminiSchema(t *testing.T) {
	def := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"corrections": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"original":        map[string]any{"type": "string"},
						"correction":      map[string]any{"type": "string"},
						"sentence_number": map[string]any{"type": "integer"},
						"confidence":      map[string]any{"type": "number"},
						"type":            map[string]any{"type": "string", "enum": []string{"grammar", "spelling", "style"}},
					},
					"required": []string{"original", "correction"},
				},
			},
			"scoring": map[string]any{
				"type":        "object",
				"description": "sub-scores in [0,1]",
			},
		},
		"required": []any{"corrections"},
	}

	schema := geminiSchema(def)

	if schema.Type != "OBJECT" {
		t.Fatalf("expected OBJECT type, got %s", schema.Type)
	}
	if len(schema.Properties) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(schema.Properties))
	}
	corr := schema.Properties["corrections"]
	if corr.Type != "ARRAY" || corr.Items == nil || corr.Items.Type != "OBJECT" {
		t.Fatalf("unexpected corrections schema %+v", corr)
	}
	item := corr.Items
	if item.Properties["sentence_number"].Type != "INTEGER" {
		t.Errorf("expected INTEGER, got %s", item.Properties["sentence_number"].Type)
	}
	if item.Properties["confidence"].Type != "NUMBER" {
		t.Errorf("expected NUMBER, got %s", item.Properties["confidence"].Type)
	}
	if len(item.Properties["type"].Enum) != 3 {
		t.Errorf("expected 3 enum values from []string, got %d", len(item.Properties["type"].Enum))
	}
	if len(item.Required) != 2 {
		t.Errorf("expected 2 required fields, got %d", len(item.Required))
	}
	if schema.Properties["scoring"].Description != "sub-scores in [0,1]" {
		t.Errorf("description lost")
	}
	if len(schema.Required) != 1 {
		t.Errorf("expected 1 required field, got %d", len(schema.Required))
	}
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	if _, err := NewGeminiProvider(context.Background(), GeminiConfig{Model: "gemini-flash"}); err == nil {
		t.Fatal("expected error without API key")
	}
}
