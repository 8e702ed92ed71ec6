package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	index           OrderedIndex
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

// WithIndex sets the ordered index searched by the service.
func WithIndex(index OrderedIndex) Option {
	return func(b *serviceBuilder) {
		b.index = index
	}
}

// WithPageLimits overrides the runtime page limits. Zero keeps the value from
// the lower config layers.
func WithPageLimits(defaultLimit int, maxLimit int) Option {
	return func(b *serviceBuilder) {
		if defaultLimit > 0 {
			b.runtimeConfig.DefaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			b.runtimeConfig.MaxLimit = maxLimit
		}
	}
}

func WithGroupSentinel(sentinel string) Option {
	return func(b *serviceBuilder) {
		b.runtimeConfig.GroupSentinel = sentinel
	}
}

// WithEnvConfig loads the config layer from SEARCH_* variables and the given
// .env files.
func WithEnvConfig(files ...string) Option {
	return func(b *serviceBuilder) {
		b.configProvider = NewCfgxConfigProvider(NewEnvConfigLoader(files...))
	}
}

// WithConfigValues loads the config layer from a static key/value map using
// the same keys as the env loader (service_name, max_limit, ...).
func WithConfigValues(values map[string]any) Option {
	return func(b *serviceBuilder) {
		b.configProvider = NewCfgxConfigProvider(staticRawConfigLoader{Values: values})
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("search", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return searchErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// GoOptionsResolver merges defaults < loaded config < runtime config.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configKey is one layered config setting. The env loader and the options
// stack both resolve keys through configKeys.
type configKey struct {
	name    string
	numeric bool
	value   func(Config) any
	unset   func(Config) bool
}

var configKeys = []configKey{
	{
		name:  "service_name",
		value: func(c Config) any { return c.ServiceName },
		unset: func(c Config) bool { return strings.TrimSpace(c.ServiceName) == "" },
	},
	{
		name:    "max_limit",
		numeric: true,
		value:   func(c Config) any { return c.MaxLimit },
		unset:   func(c Config) bool { return c.MaxLimit <= 0 },
	},
	{
		name:    "default_limit",
		numeric: true,
		value:   func(c Config) any { return c.DefaultLimit },
		unset:   func(c Config) bool { return c.DefaultLimit <= 0 },
	},
	{
		name:  "group_sentinel",
		value: func(c Config) any { return c.GroupSentinel },
		unset: func(c Config) bool { return c.GroupSentinel == "" },
	},
}

func lookupConfigKey(name string) (configKey, bool) {
	for _, key := range configKeys {
		if key.name == name {
			return key, true
		}
	}
	return configKey{}, false
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	for _, key := range configKeys {
		if includeZero || !key.unset(cfg) {
			layer[key.name] = key.value(cfg)
		}
	}
	return layer
}
