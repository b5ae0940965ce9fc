package util

import (
	"testing"
	"time"
)

func TestGetEnvInt(t *testing.T) {
	t.Setenv("CG_TEST_INT", "12")
	if got := GetEnvInt("CG_TEST_INT", 3); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
	t.Setenv("CG_TEST_INT", "twelve")
	if got := GetEnvInt("CG_TEST_INT", 3); got != 3 {
		t.Fatalf("expected default 3, got %d", got)
	}
	if got := GetEnvInt("CG_TEST_INT_UNSET", 7); got != 7 {
		t.Fatalf("expected default 7, got %d", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{value: "5s", want: 5 * time.Second},
		{value: "250ms", want: 250 * time.Millisecond},
		{value: "2", want: 2 * time.Second},
		{value: "soon", want: time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("CG_TEST_DURATION", tt.value)
		if got := GetEnvDuration("CG_TEST_DURATION", time.Minute); got != tt.want {
			t.Fatalf("value %q: expected %v, got %v", tt.value, tt.want, got)
		}
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("CG_TEST_BOOL", "true")
	if !GetEnvBool("CG_TEST_BOOL", false) {
		t.Fatal("expected true")
	}
	t.Setenv("CG_TEST_BOOL", "yes")
	if GetEnvBool("CG_TEST_BOOL", false) {
		t.Fatal("expected default false for unrecognized value")
	}
}
