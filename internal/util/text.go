package util

import "strings"

// SanitizePostgresText drops NUL bytes and invalid UTF-8, both of which
// Postgres rejects in text and jsonb values.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// SanitizePostgresDoc applies SanitizePostgresText to every string key and
// value of doc, descending into nested maps and slices. doc is modified in
// place and returned.
func SanitizePostgresDoc(doc map[string]any) map[string]any {
	for k, v := range doc {
		clean := SanitizePostgresText(k)
		if clean != k {
			delete(doc, k)
		}
		doc[clean] = sanitizeValue(v)
	}
	return doc
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return SanitizePostgresText(t)
	case map[string]any:
		return SanitizePostgresDoc(t)
	case []any:
		for i := range t {
			t[i] = sanitizeValue(t[i])
		}
		return t
	case []string:
		for i := range t {
			t[i] = SanitizePostgresText(t[i])
		}
		return t
	default:
		return v
	}
}
