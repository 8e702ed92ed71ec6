package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return l.values, nil
}

// recordingIndex wraps an OrderedIndex and keeps every query it receives.
type recordingIndex struct {
	mu      sync.Mutex
	next    OrderedIndex
	err     error
	queries []IndexQuery
}

func (r *recordingIndex) Query(ctx context.Context, query IndexQuery) (IndexPage, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()
	if r.err != nil {
		return IndexPage{}, r.err
	}
	if r.next == nil {
		return IndexPage{}, nil
	}
	return r.next.Query(ctx, query)
}

func (r *recordingIndex) calls() []IndexQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]IndexQuery(nil), r.queries...)
}

func newTestService(t *testing.T, index OrderedIndex, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithIndex(index), WithLogger(stubLogger{})}, opts...)
	svc, err := NewService(DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

// seedShortIDs stores ids 000100000+offset for offset in [0,count).
func seedShortIDs(t *testing.T, index *MemoryIndex, orgID string, count int, internal func(int) bool) {
	t.Helper()
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("000100%03d", i)
		entry := ShortIDEntry{
			ShortID: id,
			LongID:  fmt.Sprintf("res_%03d", i),
		}
		if internal != nil {
			entry.Internal = internal(i)
		}
		if err := index.PutShortID(context.Background(), orgID, entry); err != nil {
			t.Fatalf("put short id %s: %v", id, err)
		}
	}
}

func collectShortIDPages(t *testing.T, svc *Service, orgID string, fragment string, limit int) ([][]ResultProjection, []Cursor) {
	t.Helper()
	params := PageParams{Limit: limit}
	var pages [][]ResultProjection
	var cursors []Cursor
	for i := 0; i < 1000; i++ {
		result, err := svc.SearchByShortID(context.Background(), orgID, fragment, params)
		if err != nil {
			t.Fatalf("search page %d: %v", i, err)
		}
		if result.Params.Cursor.IsZero() {
			return pages, cursors
		}
		pages = append(pages, result.Results)
		cursors = append(cursors, result.Params.Cursor)
		params = result.Params
	}
	t.Fatalf("pagination did not terminate")
	return nil, nil
}
