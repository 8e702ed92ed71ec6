package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// OrderedIndex is a sorted key-value index that supports range predicates,
// ordering, limits, and resuming after an opaque cursor.
//
// Implementations return records ordered by IndexQuery.OrderBy ascending and
// must not drop records carrying the internal marker.
type OrderedIndex interface {
	Query(ctx context.Context, query IndexQuery) (IndexPage, error)
}

type IndexWriter interface {
	PutShortID(ctx context.Context, orgID string, entry ShortIDEntry) error
	PutResource(ctx context.Context, orgID string, entry ResourceEntry) error
}

type Searcher interface {
	SearchByShortID(
		ctx context.Context,
		orgID string,
		fragment string,
		params PageParams,
	) (SearchResult[[]ResultProjection], error)
	SearchInGroup(
		ctx context.Context,
		orgID string,
		group string,
		query string,
		params PageParams,
	) (SearchResult[[]ResultProjection], error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
