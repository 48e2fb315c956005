package config

import "testing"

func TestValidateDefaultOK(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsEmptyRootPath(t *testing.T) {
	cfg := Default()
	cfg.RootPath = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	cfg := Default()
	cfg.LockTimeoutSeconds = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateRejectsOversizedMaxKeySize(t *testing.T) {
	cfg := Default()
	cfg.MaxKeySize = 1 << 21
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxHashDimensions != Default().MaxHashDimensions {
		t.Fatalf("max_hash_dimensions=%d want=%d", cfg.MaxHashDimensions, Default().MaxHashDimensions)
	}
}
