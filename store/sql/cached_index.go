package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-search/core"
)

const indexPageCacheKeyPrefix = "go-search::index_page::v1"

// Index backends that can also accept writes.
type WritableIndex interface {
	core.OrderedIndex
	core.IndexWriter
}

// CachedIndex serves repeated page reads from a go-repository-cache service.
// Writes made through it bump a per-scope generation so later reads miss the
// cache; writes made elsewhere become visible once the cache TTL expires.
type CachedIndex struct {
	base  WritableIndex
	cache repositorycache.CacheService

	mu          sync.RWMutex
	generations map[string]uint64
}

func NewCachedIndex(base WritableIndex, cacheService repositorycache.CacheService) (*CachedIndex, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base index is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: index cache service is required")
	}
	return &CachedIndex{
		base:        base,
		cache:       cacheService,
		generations: map[string]uint64{},
	}, nil
}

// IndexPageCacheKey returns the cache key for one page read:
// go-search::index_page::v1::<scope>::<collection>::<generation>::<predicates>::<cursor>::<limit>
// with each segment URL-path escaped.
func IndexPageCacheKey(query core.IndexQuery, generation uint64) (string, error) {
	scope := strings.TrimSpace(query.Scope)
	if scope == "" || strings.TrimSpace(query.Collection) == "" {
		return "", fmt.Errorf("sqlstore: scope and collection are required for cache keys")
	}
	predicates := make([]string, 0, len(query.Where))
	for _, predicate := range query.Where {
		predicates = append(predicates, predicate.Field+" "+string(predicate.Op)+" "+predicate.Value)
	}
	segments := []string{
		scope,
		query.Collection,
		strconv.FormatUint(generation, 10),
		strings.Join(predicates, "&"),
		query.OrderBy,
		string(query.StartAfter),
		strconv.Itoa(query.Limit),
	}
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(append([]string{indexPageCacheKeyPrefix}, segments...), "::"), nil
}

func (s *CachedIndex) Query(ctx context.Context, query core.IndexQuery) (core.IndexPage, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.IndexPage{}, fmt.Errorf("sqlstore: cached index is not configured")
	}
	cacheKey, err := IndexPageCacheKey(query, s.generation(query.Scope))
	if err != nil {
		return core.IndexPage{}, err
	}
	page, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.IndexPage, error) {
		fetched, fetchErr := s.base.Query(ctx, query)
		if fetchErr != nil {
			return core.IndexPage{}, fetchErr
		}
		return cloneIndexPage(fetched), nil
	})
	if err != nil {
		return core.IndexPage{}, err
	}
	return cloneIndexPage(page), nil
}

func (s *CachedIndex) PutShortID(ctx context.Context, orgID string, entry core.ShortIDEntry) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached index is not configured")
	}
	if err := s.base.PutShortID(ctx, orgID, entry); err != nil {
		return err
	}
	s.bump(orgID)
	return nil
}

func (s *CachedIndex) PutResource(ctx context.Context, orgID string, entry core.ResourceEntry) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached index is not configured")
	}
	if err := s.base.PutResource(ctx, orgID, entry); err != nil {
		return err
	}
	s.bump(orgID)
	return nil
}

func (s *CachedIndex) generation(scope string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[strings.TrimSpace(scope)]
}

func (s *CachedIndex) bump(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[strings.TrimSpace(scope)]++
}

func cloneIndexPage(page core.IndexPage) core.IndexPage {
	out := core.IndexPage{
		Records: make([]core.RawRecord, 0, len(page.Records)),
		Last:    page.Last,
	}
	for _, record := range page.Records {
		copied := make(core.RawRecord, len(record))
		for key, value := range record {
			if nested, ok := value.(map[string]any); ok {
				inner := make(map[string]any, len(nested))
				for nestedKey, nestedValue := range nested {
					inner[nestedKey] = nestedValue
				}
				value = inner
			}
			copied[key] = value
		}
		out.Records = append(out.Records, copied)
	}
	return out
}

var (
	_ core.OrderedIndex = (*CachedIndex)(nil)
	_ core.IndexWriter  = (*CachedIndex)(nil)
)
