package config

import (
	"strings"
	"testing"
)

// TestValidateOperatorRoles verifies unknown role strings are rejected at load
func TestValidateOperatorRoles(t *testing.T) {
	cfg := &Config{}
	cfg.AuthConfig.Operators = []Operator{
		{ID: "admin1", Role: "admin"},
		{ID: "obs1", Role: "observer"},
	}
	if err := validate(cfg); err != nil {
		t.Errorf("valid roles rejected: %v", err)
	}

	cfg.AuthConfig.Operators = append(cfg.AuthConfig.Operators, Operator{ID: "bad1", Role: "viewer"})
	err := validate(cfg)
	if err == nil {
		t.Fatal("unknown role should be rejected")
	}
	if !strings.Contains(err.Error(), "bad1") {
		t.Errorf("error should name the operator, got %v", err)
	}
}
