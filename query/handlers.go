package query

import (
	"context"

	"github.com/goliatone/go-search/core"
)

type SearchByShortIDQuery struct {
	searcher core.Searcher
}

func NewSearchByShortIDQuery(searcher core.Searcher) *SearchByShortIDQuery {
	return &SearchByShortIDQuery{searcher: searcher}
}

func (q *SearchByShortIDQuery) Query(
	ctx context.Context,
	msg SearchByShortIDMessage,
) (core.SearchResult[[]core.ResultProjection], error) {
	if q == nil || q.searcher == nil {
		return core.SearchResult[[]core.ResultProjection]{}, queryDependencyError("searcher is required")
	}
	return q.searcher.SearchByShortID(ctx, msg.OrgID, msg.Fragment, msg.Params)
}

type SearchInGroupQuery struct {
	searcher core.Searcher
}

func NewSearchInGroupQuery(searcher core.Searcher) *SearchInGroupQuery {
	return &SearchInGroupQuery{searcher: searcher}
}

func (q *SearchInGroupQuery) Query(
	ctx context.Context,
	msg SearchInGroupMessage,
) (core.SearchResult[[]core.ResultProjection], error) {
	if q == nil || q.searcher == nil {
		return core.SearchResult[[]core.ResultProjection]{}, queryDependencyError("searcher is required")
	}
	return q.searcher.SearchInGroup(ctx, msg.OrgID, msg.Group, msg.Query, msg.Params)
}
