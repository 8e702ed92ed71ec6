package search

import (
	"fmt"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-search/core"
	sqlstore "github.com/goliatone/go-search/store/sql"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Searcher = core.Searcher
type OrderedIndex = core.OrderedIndex
type IndexWriter = core.IndexWriter

type SearchRange = core.SearchRange
type Cursor = core.Cursor
type PageParams = core.PageParams
type ResultProjection = core.ResultProjection
type Results = core.SearchResult[[]core.ResultProjection]

type ShortIDEntry = core.ShortIDEntry
type ResourceEntry = core.ResourceEntry

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithIndex           = core.WithIndex
)

var (
	DeriveRange       = core.DeriveRange
	GroupPrefixRange  = core.GroupPrefixRange
	NormalizeShortID  = core.NormalizeShortID
	FormatShortID     = core.FormatShortID
	IsInvalidFragment = core.IsInvalidFragment
	IsArithmeticError = core.IsArithmeticError
	IsQueryError      = core.IsQueryExecutionError
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// NewMemoryService builds a service over a fresh in-memory index and returns
// the index so callers can seed it.
func NewMemoryService(cfg Config, opts ...Option) (*Service, *core.MemoryIndex, error) {
	index := core.NewMemoryIndex()
	svc, err := core.NewService(cfg, append(opts, core.WithIndex(index))...)
	if err != nil {
		return nil, nil, err
	}
	return svc, index, nil
}

// NewSQLService builds a service over the relational index reachable from
// client (a *bun.DB or a go-persistence-bun client). When cacheService is not
// nil, page reads go through a read-through cache.
func NewSQLService(
	client any,
	cacheService repositorycache.CacheService,
	cfg Config,
	opts ...Option,
) (*Service, sqlstore.WritableIndex, error) {
	base, err := sqlstore.NewIndexFromPersistence(client)
	if err != nil {
		return nil, nil, fmt.Errorf("search: sql index: %w", err)
	}
	var index sqlstore.WritableIndex = base
	if cacheService != nil {
		cached, err := sqlstore.NewCachedIndex(base, cacheService)
		if err != nil {
			return nil, nil, err
		}
		index = cached
	}
	svc, err := core.NewService(cfg, append(opts, core.WithIndex(index))...)
	if err != nil {
		return nil, nil, err
	}
	return svc, index, nil
}
