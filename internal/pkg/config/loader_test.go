package config

import (
	"strings"
	"testing"
	"time"
)

func noSpaces(s string) error {
	if strings.Contains(s, " ") {
		return &testValidationError{msg: "must not contain spaces"}
	}
	return nil
}

type testValidationError struct{ msg string }

func (e *testValidationError) Error() string { return e.msg }

func TestLoadEnvString_WithValue(t *testing.T) {
	t.Setenv("TEST_STRING", "custom_value")
	if got := LoadEnvString("TEST_STRING", "default"); got != "custom_value" {
		t.Errorf("expected 'custom_value', got %q", got)
	}
}

func TestLoadEnvString_WithoutValue(t *testing.T) {
	if got := LoadEnvString("TEST_STRING_UNSET", "default"); got != "default" {
		t.Errorf("expected 'default', got %q", got)
	}
}

func TestLoadEnvString_EmptyString(t *testing.T) {
	t.Setenv("TEST_STRING", "")
	if got := LoadEnvString("TEST_STRING", "default"); got != "default" {
		t.Errorf("empty env var should fall through to default, got %q", got)
	}
}

func TestLoadEnvWithFallback_ValidValue(t *testing.T) {
	t.Setenv("TEST_SOURCES_DIR", "sources")
	result := LoadEnvWithFallback("TEST_SOURCES_DIR", "default_dir", noSpaces)
	if result.FallbackApplied {
		t.Error("expected no fallback for valid value")
	}
	if result.Value.(string) != "sources" {
		t.Errorf("expected 'sources', got %v", result.Value)
	}
}

func TestLoadEnvWithFallback_UnsetIsSilent(t *testing.T) {
	result := LoadEnvWithFallback("TEST_SOURCES_DIR_UNSET", "default_dir", noSpaces)
	if result.FallbackApplied {
		t.Error("unset variable must not count as a fallback")
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unset variable must not warn, got %v", result.Warnings)
	}
	if result.Value.(string) != "default_dir" {
		t.Errorf("expected default, got %v", result.Value)
	}
}

func TestLoadEnvWithFallback_InvalidValueWarns(t *testing.T) {
	t.Setenv("TEST_SOURCES_DIR", "has a space")
	result := LoadEnvWithFallback("TEST_SOURCES_DIR", "default_dir", noSpaces)
	if !result.FallbackApplied {
		t.Fatal("expected fallback for invalid value")
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", result.Warnings)
	}
	if !strings.Contains(result.Warnings[0], "TEST_SOURCES_DIR") {
		t.Errorf("warning should name the env var, got %q", result.Warnings[0])
	}
	if result.Value.(string) != "default_dir" {
		t.Errorf("expected default after fallback, got %v", result.Value)
	}
}

func TestLoadEnvWithFallback_NoValidator(t *testing.T) {
	t.Setenv("TEST_STRING", "anything at all")
	result := LoadEnvWithFallback("TEST_STRING", "default", nil)
	if result.FallbackApplied || result.Value.(string) != "anything at all" {
		t.Errorf("nil validator must accept any value, got %+v", result)
	}
}

func TestLoadEnvDuration_ValidValue(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "1h")
	result := LoadEnvDuration("TEST_TIMEOUT", 30*time.Minute, ValidatePositiveDuration)
	if result.FallbackApplied {
		t.Error("expected no fallback")
	}
	if result.Value.(time.Duration) != time.Hour {
		t.Errorf("expected 1h, got %v", result.Value)
	}
}

func TestLoadEnvDuration_Unset(t *testing.T) {
	result := LoadEnvDuration("TEST_TIMEOUT_UNSET", 30*time.Minute, ValidatePositiveDuration)
	if result.FallbackApplied || result.Value.(time.Duration) != 30*time.Minute {
		t.Errorf("expected silent default, got %+v", result)
	}
}

func TestLoadEnvDuration_InvalidFormat(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "not-a-duration")
	result := LoadEnvDuration("TEST_TIMEOUT", 30*time.Minute, ValidatePositiveDuration)
	if !result.FallbackApplied {
		t.Fatal("expected fallback for unparseable duration")
	}
	if result.Value.(time.Duration) != 30*time.Minute {
		t.Errorf("expected default after fallback, got %v", result.Value)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", result.Warnings)
	}
}

func TestLoadEnvDuration_NegativeRejected(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "-30m")
	result := LoadEnvDuration("TEST_TIMEOUT", 30*time.Minute, ValidatePositiveDuration)
	if !result.FallbackApplied {
		t.Fatal("expected fallback for negative duration")
	}
	if result.Value.(time.Duration) != 30*time.Minute {
		t.Errorf("expected default, got %v", result.Value)
	}
}

func TestLoadEnvDuration_ZeroRejected(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "0s")
	result := LoadEnvDuration("TEST_TIMEOUT", 30*time.Minute, ValidatePositiveDuration)
	if !result.FallbackApplied {
		t.Error("zero duration must fail ValidatePositiveDuration")
	}
}

func TestLoadEnvDuration_RangeValidator(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "10h")
	result := LoadEnvDuration("TEST_TIMEOUT", 30*time.Minute, func(d time.Duration) error {
		return ValidateDuration(d, 1*time.Minute, 2*time.Hour)
	})
	if !result.FallbackApplied {
		t.Error("10h exceeds the 2h ceiling and must fall back")
	}
}

func TestLoadEnvInt_ValidValue(t *testing.T) {
	t.Setenv("TEST_WORKERS", "8")
	result := LoadEnvInt("TEST_WORKERS", 4, func(v int) error {
		return ValidateIntRange(v, 1, 256)
	})
	if result.FallbackApplied || result.Value.(int) != 8 {
		t.Errorf("expected 8, got %+v", result)
	}
}

func TestLoadEnvInt_Unset(t *testing.T) {
	result := LoadEnvInt("TEST_WORKERS_UNSET", 4, nil)
	if result.FallbackApplied || result.Value.(int) != 4 {
		t.Errorf("expected silent default, got %+v", result)
	}
}

func TestLoadEnvInt_InvalidFormat(t *testing.T) {
	t.Setenv("TEST_WORKERS", "eight")
	result := LoadEnvInt("TEST_WORKERS", 4, nil)
	if !result.FallbackApplied || result.Value.(int) != 4 {
		t.Errorf("expected fallback to default for non-integer, got %+v", result)
	}
}

func TestLoadEnvInt_OutOfRange(t *testing.T) {
	t.Setenv("TEST_WORKERS", "10000")
	result := LoadEnvInt("TEST_WORKERS", 4, func(v int) error {
		return ValidateIntRange(v, 1, 256)
	})
	if !result.FallbackApplied {
		t.Fatal("expected fallback for out-of-range value")
	}
	if !strings.Contains(result.Warnings[0], "TEST_WORKERS") {
		t.Errorf("warning should name the env var, got %q", result.Warnings[0])
	}
}

func TestLoadEnvInt_NegativeValue(t *testing.T) {
	t.Setenv("TEST_COUNT", "-5")
	result := LoadEnvInt("TEST_COUNT", 10, func(v int) error {
		return ValidateIntRange(v, 1, 1000)
	})
	if !result.FallbackApplied || result.Value.(int) != 10 {
		t.Errorf("expected fallback for negative count, got %+v", result)
	}
}

func TestLoadEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		set          bool
		defaultValue bool
		want         bool
		wantFallback bool
	}{
		{"true spelled out", "true", true, false, true, false},
		{"one", "1", true, false, true, false},
		{"uppercase TRUE", "TRUE", true, false, true, false},
		{"false spelled out", "false", true, true, false, false},
		{"zero", "0", true, true, false, false},
		{"unset uses default", "", false, true, true, false},
		{"garbage falls back", "maybe", true, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("TEST_BOOL", tt.value)
			}
			result := LoadEnvBool("TEST_BOOL", tt.defaultValue)
			if result.Value.(bool) != tt.want {
				t.Errorf("expected %v, got %v", tt.want, result.Value)
			}
			if result.FallbackApplied != tt.wantFallback {
				t.Errorf("FallbackApplied = %v, want %v", result.FallbackApplied, tt.wantFallback)
			}
		})
	}
}
