package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvConfigLoader_FilesAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "SEARCH_SERVICE_NAME=from-file\nSEARCH_MAX_LIMIT=40\nOTHER_VALUE=ignored\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	loader := NewEnvConfigLoader(path, filepath.Join(dir, "missing.env"))
	loader.Environ = func() []string {
		return []string{"SEARCH_DEFAULT_LIMIT=15", "SEARCH_MAX_LIMIT=60", "PATH=/bin"}
	}

	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if raw["service_name"] != "from-file" {
		t.Fatalf("expected file value, got %v", raw["service_name"])
	}
	if raw["max_limit"] != 60 {
		t.Fatalf("expected environment to override file, got %v", raw["max_limit"])
	}
	if raw["default_limit"] != 15 {
		t.Fatalf("expected default limit from environment, got %v", raw["default_limit"])
	}
	if _, ok := raw["other_value"]; ok {
		t.Fatalf("expected unprefixed keys to be ignored")
	}
}

func TestEnvConfigLoader_InvalidNumber(t *testing.T) {
	loader := &EnvConfigLoader{
		Environ: func() []string { return []string{"SEARCH_MAX_LIMIT=lots"} },
	}
	if _, err := loader.LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected invalid max limit to fail")
	}
}

func TestEnvConfigLoader_FeedsService(t *testing.T) {
	loader := &EnvConfigLoader{
		Environ: func() []string { return []string{"SEARCH_MAX_LIMIT=30", "SEARCH_GROUP_SENTINEL=~"} },
	}
	svc, err := NewService(Config{},
		WithIndex(NewMemoryIndex()),
		WithConfigProvider(NewCfgxConfigProvider(loader)),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.MaxLimit != 30 || cfg.GroupSentinel != "~" {
		t.Fatalf("expected environment config, got %+v", cfg)
	}
}
