package config

import (
	"os"
	"testing"
)

func TestExpandEnvSubstitutesSetVariable(t *testing.T) {
	t.Setenv("LV_TEST_VAR", "hello")
	got := ExpandEnv("value: ${LV_TEST_VAR}")
	if got != "value: hello" {
		t.Errorf("got %q", got)
	}
}

func TestExpandEnvUsesDefaultWhenUnset(t *testing.T) {
	os.Unsetenv("LV_TEST_UNSET")
	got := ExpandEnv("value: ${LV_TEST_UNSET:-fallback}")
	if got != "value: fallback" {
		t.Errorf("got %q", got)
	}
}

func TestExpandEnvEmptyStringWhenUnsetNoDefault(t *testing.T) {
	os.Unsetenv("LV_TEST_UNSET_2")
	got := ExpandEnv("value: ${LV_TEST_UNSET_2}")
	if got != "value: " {
		t.Errorf("got %q", got)
	}
}

func TestExpandEnvPrefersSetValueOverDefault(t *testing.T) {
	t.Setenv("LV_TEST_VAR_2", "real")
	got := ExpandEnv("value: ${LV_TEST_VAR_2:-fallback}")
	if got != "value: real" {
		t.Errorf("got %q", got)
	}
}

func TestExpandEnvMultipleOccurrences(t *testing.T) {
	t.Setenv("LV_A", "1")
	t.Setenv("LV_B", "2")
	got := ExpandEnv("${LV_A}-${LV_B}")
	if got != "1-2" {
		t.Errorf("got %q", got)
	}
}
