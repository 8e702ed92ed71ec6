package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-search/core"
)

var (
	_ gocmd.Querier[SearchByShortIDMessage, core.SearchResult[[]core.ResultProjection]] = (*SearchByShortIDQuery)(nil)
	_ gocmd.Querier[SearchInGroupMessage, core.SearchResult[[]core.ResultProjection]]   = (*SearchInGroupQuery)(nil)
)
