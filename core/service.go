package core

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service runs paged range searches against an OrderedIndex. It holds no
// mutable state after construction and is safe for concurrent use.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	index           OrderedIndex
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Index           OrderedIndex
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("search", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("search"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.index == nil {
		return nil, mapBuildError(builder.errorMapper, dependencyError("core: ordered index is required"))
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		index:           builder.index,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		Index:           s.index,
	}
}

// SearchByShortID pages through the short ids matching a fragment. An exact
// fragment matches one id; a partial fragment matches its whole bucket.
func (s *Service) SearchByShortID(
	ctx context.Context,
	orgID string,
	fragment string,
	params PageParams,
) (result SearchResult[[]ResultProjection], err error) {
	startedAt := time.Now()
	fields := map[string]any{
		"org_id":     strings.TrimSpace(orgID),
		"collection": CollectionShortIDs,
		"fragment":   fragment,
	}
	defer func() {
		fields["results"] = len(result.Results)
		s.observeSearch(ctx, startedAt, "short_id_search", err, fields)
	}()

	if err := s.ready(orgID); err != nil {
		return SearchResult[[]ResultProjection]{}, err
	}
	rng, err := DeriveRange(fragment)
	if err != nil {
		return SearchResult[[]ResultProjection]{}, s.mapError(err)
	}
	fields["range_kind"] = rangeKind(rng)
	fields["lower"] = rng.Lower
	fields["upper"] = rng.Upper

	return s.search(ctx, IndexQuery{
		Scope:      strings.TrimSpace(orgID),
		Collection: CollectionShortIDs,
		Where:      shortIDPredicates(rng),
		OrderBy:    FieldID,
	}, params, projectShortID, fields)
}

// SearchInGroup pages through resources whose value for the given group
// starts with query.
func (s *Service) SearchInGroup(
	ctx context.Context,
	orgID string,
	group string,
	query string,
	params PageParams,
) (result SearchResult[[]ResultProjection], err error) {
	startedAt := time.Now()
	fields := map[string]any{
		"org_id":     strings.TrimSpace(orgID),
		"collection": CollectionResources,
		"group":      group,
		"range_kind": "group_prefix",
	}
	defer func() {
		fields["results"] = len(result.Results)
		s.observeSearch(ctx, startedAt, "group_search", err, fields)
	}()

	if err := s.ready(orgID); err != nil {
		return SearchResult[[]ResultProjection]{}, err
	}
	group = strings.TrimSpace(group)
	if group == "" {
		return SearchResult[[]ResultProjection]{}, s.mapError(badInputError("search: group is required"))
	}
	rng, err := GroupPrefixRange(query, s.config.GroupSentinel)
	if err != nil {
		return SearchResult[[]ResultProjection]{}, s.mapError(err)
	}

	field := GroupField(group)
	return s.search(ctx, IndexQuery{
		Scope:      strings.TrimSpace(orgID),
		Collection: CollectionResources,
		Where: []Predicate{
			{Field: field, Op: OpGTE, Value: rng.Lower},
			{Field: field, Op: OpLT, Value: rng.Upper},
		},
		OrderBy: FieldID,
	}, params, projectGroupMember, fields)
}

func (s *Service) search(
	ctx context.Context,
	query IndexQuery,
	params PageParams,
	project projector,
	fields map[string]any,
) (SearchResult[[]ResultProjection], error) {
	query.StartAfter = params.Cursor
	query.Limit = s.config.EffectiveLimit(params.Limit)

	page, err := s.index.Query(ctx, query)
	if err != nil {
		return SearchResult[[]ResultProjection]{}, s.mapError(QueryExecutionError(err))
	}

	// The cursor tracks the last scanned record, internal ones included, so
	// the next page neither rescans nor skips entries.
	next := page.Last

	results := make([]ResultProjection, 0, len(page.Records))
	hidden := 0
	for _, record := range page.Records {
		if IsInternal(record) {
			hidden++
			continue
		}
		results = append(results, project(record))
	}
	fields["scanned"] = len(page.Records)
	fields["hidden"] = hidden
	fields["exhausted"] = next.IsZero()

	out := params
	out.Cursor = next
	return SearchResult[[]ResultProjection]{Results: results, Params: out}, nil
}

func (s *Service) ready(orgID string) error {
	if s == nil || s.index == nil {
		return dependencyError("core: search service is not configured")
	}
	if strings.TrimSpace(orgID) == "" {
		return s.mapError(badInputError("search: org id is required"))
	}
	return nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func shortIDPredicates(rng SearchRange) []Predicate {
	switch {
	case rng.IsExact():
		return []Predicate{{Field: FieldID, Op: OpEQ, Value: rng.Lower}}
	case rng.IsUnbounded():
		return []Predicate{{Field: FieldID, Op: OpGTE, Value: rng.Lower}}
	default:
		return []Predicate{
			{Field: FieldID, Op: OpGTE, Value: rng.Lower},
			{Field: FieldID, Op: OpLT, Value: rng.Upper},
		}
	}
}

func rangeKind(rng SearchRange) string {
	switch {
	case rng.IsExact():
		return "exact"
	case rng.IsUnbounded():
		return "open_prefix"
	default:
		return "prefix"
	}
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

var _ Searcher = (*Service)(nil)
