package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"true", false, true},
		{"ON", false, true},
		{"0", true, false},
		{"no", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("AVOTECH_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("AVOTECH_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 5 * time.Second},
		{"10s", 10 * time.Second},
		{"12h", 12 * time.Hour},
		{"30", 30 * time.Second},
		{"-3", 5 * time.Second},
		{"soon", 5 * time.Second},
		{"0s", 5 * time.Second},
	}
	for _, tt := range tests {
		t.Setenv("AVOTECH_TEST_DURATION", tt.value)
		if got := ParseDurationEnv("AVOTECH_TEST_DURATION", 5*time.Second); got != tt.want {
			t.Errorf("ParseDurationEnv(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("AVOTECH_TEST_INT", "42")
	if got := ParseIntEnv("AVOTECH_TEST_INT", 1); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("AVOTECH_TEST_INT", "x")
	if got := ParseIntEnv("AVOTECH_TEST_INT", 1); got != 1 {
		t.Errorf("expected default 1, got %d", got)
	}
}
