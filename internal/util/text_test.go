package util

import "testing"

func TestSanitizePostgresText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain utf8",
			input: "hello world",
			want:  "hello world",
		},
		{
			name:  "contains null byte",
			input: "hel\x00lo",
			want:  "hello",
		},
		{
			name:  "contains invalid utf8",
			input: string([]byte{'a', 0xff, 'b'}),
			want:  "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizePostgresText(tt.input)
			if got != tt.want {
				t.Fatalf("unexpected sanitized value: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizePostgresDoc(t *testing.T) {
	doc := map[string]any{
		"description": "broken\x00text",
		"nested":      map[string]any{"k": "v\x00"},
		"list":        []any{"a\x00", 1},
		"count":       3,
		"bad\x00key":  "x",
	}

	got := SanitizePostgresDoc(doc)

	if got["description"] != "brokentext" {
		t.Fatalf("unexpected description: %q", got["description"])
	}
	if got["nested"].(map[string]any)["k"] != "v" {
		t.Fatalf("nested value not sanitized: %v", got["nested"])
	}
	if got["list"].([]any)[0] != "a" {
		t.Fatalf("list value not sanitized: %v", got["list"])
	}
	if got["count"] != 3 {
		t.Fatalf("non-string value changed: %v", got["count"])
	}
	if _, ok := got["badkey"]; !ok {
		t.Fatalf("key not sanitized: %v", got)
	}
	if _, ok := got["bad\x00key"]; ok {
		t.Fatalf("original key still present: %v", got)
	}
}
