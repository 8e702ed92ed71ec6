package core

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{}, WithIndex(NewMemoryIndex()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorFactory == nil {
		t.Fatalf("expected default error factory")
	}
	if deps.ErrorMapper == nil {
		t.Fatalf("expected default error mapper")
	}
	if deps.ConfigProvider == nil {
		t.Fatalf("expected default config provider")
	}
	if deps.OptionsResolver == nil {
		t.Fatalf("expected default options resolver")
	}
	if deps.Index == nil {
		t.Fatalf("expected configured index")
	}
	cfg := svc.Config()
	if cfg.ServiceName != "search" {
		t.Fatalf("expected default service_name=search, got %q", cfg.ServiceName)
	}
	if cfg.MaxLimit != MaxPageLimit || cfg.DefaultLimit != DefaultPageLimit {
		t.Fatalf("unexpected default limits %+v", cfg)
	}
	if cfg.GroupSentinel != DefaultGroupSentinel {
		t.Fatalf("expected default group sentinel")
	}
}

func TestNewService_WithOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	customFactory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	resolved := DefaultConfig()
	resolved.ServiceName = "resolved"
	optionsResolver := &fixedOptionsResolver{cfg: resolved}
	metrics := &captureMetricsRecorder{}

	svc, err := NewService(Config{},
		WithIndex(NewMemoryIndex()),
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorFactory(customFactory),
		WithErrorMapper(customMapper),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithMetricsRecorder(metrics),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.ConfigProvider != configProvider {
		t.Fatalf("expected custom config provider")
	}
	if deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected custom options resolver")
	}
	if deps.MetricsRecorder != metrics {
		t.Fatalf("expected custom metrics recorder")
	}
	if got := deps.ErrorFactory("x").Message; got != "custom:x" {
		t.Fatalf("expected custom error factory, got %q", got)
	}
	if got := deps.ErrorMapper(errors.New("boom")); got == nil || got.Message != "mapped" {
		t.Fatalf("expected custom error mapper")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected resolver output to win, got %q", got)
	}
}

func TestNewService_ConfigPrecedence(t *testing.T) {
	loader := mapRawLoader{values: map[string]any{
		"service_name":  "from-config",
		"max_limit":     50,
		"default_limit": 10,
	}}
	svc, err := NewService(Config{DefaultLimit: 20},
		WithIndex(NewMemoryIndex()),
		WithConfigProvider(NewCfgxConfigProvider(loader)),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "from-config" {
		t.Fatalf("expected loaded service name, got %q", cfg.ServiceName)
	}
	if cfg.MaxLimit != 50 {
		t.Fatalf("expected loaded max limit, got %d", cfg.MaxLimit)
	}
	if cfg.DefaultLimit != 20 {
		t.Fatalf("expected runtime default limit to win, got %d", cfg.DefaultLimit)
	}
	if got := cfg.EffectiveLimit(80); got != 50 {
		t.Fatalf("expected limit clamped to configured max, got %d", got)
	}
}

func TestNewService_ConfigValuesAndRuntimeOptions(t *testing.T) {
	svc, err := NewService(Config{},
		WithIndex(NewMemoryIndex()),
		WithConfigValues(map[string]any{
			"service_name":  "values",
			"max_limit":     40,
			"default_limit": 30,
		}),
		WithPageLimits(5, 0),
		WithGroupSentinel("~"),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "values" || cfg.MaxLimit != 40 {
		t.Fatalf("expected config values layer, got %+v", cfg)
	}
	if cfg.DefaultLimit != 5 {
		t.Fatalf("expected runtime default limit, got %d", cfg.DefaultLimit)
	}
	if cfg.GroupSentinel != "~" {
		t.Fatalf("expected runtime sentinel, got %q", cfg.GroupSentinel)
	}
}

func TestConfigToLayerMap_SkipsUnsetKeys(t *testing.T) {
	layer := configToLayerMap(Config{MaxLimit: 10}, false)
	if len(layer) != 1 || layer["max_limit"] != 10 {
		t.Fatalf("expected only max_limit, got %+v", layer)
	}
	if full := configToLayerMap(Config{}, true); len(full) != len(configKeys) {
		t.Fatalf("expected every key with zero values, got %+v", full)
	}
}

func TestNewService_InvalidConfig(t *testing.T) {
	_, err := NewService(Config{MaxLimit: MaxPageLimit + 1}, WithIndex(NewMemoryIndex()))
	if err == nil {
		t.Fatalf("expected max limit above the hard ceiling to fail")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected mapped build error, got %T", err)
	}
}

func TestConfig_EffectiveLimit(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.EffectiveLimit(0); got != DefaultPageLimit {
		t.Fatalf("expected default limit, got %d", got)
	}
	if got := cfg.EffectiveLimit(1000); got != MaxPageLimit {
		t.Fatalf("expected hard ceiling, got %d", got)
	}
	cfg.MaxLimit = 0
	if got := cfg.EffectiveLimit(1000); got != MaxPageLimit {
		t.Fatalf("expected hard ceiling when unset, got %d", got)
	}
}
