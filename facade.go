package search

import (
	"fmt"

	searchcommand "github.com/goliatone/go-search/command"
	"github.com/goliatone/go-search/core"
	searchquery "github.com/goliatone/go-search/query"
)

type Commands struct {
	IndexShortID  *searchcommand.IndexShortIDCommand
	IndexResource *searchcommand.IndexResourceCommand
}

type Queries struct {
	SearchByShortID *searchquery.SearchByShortIDQuery
	SearchInGroup   *searchquery.SearchInGroupQuery
}

// Facade bundles the go-command handlers for one searcher. Commands are only
// wired when an index writer is available.
type Facade struct {
	searcher core.Searcher
	writer   core.IndexWriter
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	writer core.IndexWriter
}

func WithIndexWriter(writer core.IndexWriter) FacadeOption {
	return func(options *facadeOptions) {
		options.writer = writer
	}
}

func NewFacade(searcher core.Searcher, opts ...FacadeOption) (*Facade, error) {
	if searcher == nil {
		return nil, fmt.Errorf("search: searcher is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	writer := cfg.writer
	if writer == nil {
		writer = resolveIndexWriter(searcher)
	}

	facade := &Facade{searcher: searcher, writer: writer}
	facade.queries = Queries{
		SearchByShortID: searchquery.NewSearchByShortIDQuery(searcher),
		SearchInGroup:   searchquery.NewSearchInGroupQuery(searcher),
	}
	if writer != nil {
		facade.commands = Commands{
			IndexShortID:  searchcommand.NewIndexShortIDCommand(writer),
			IndexResource: searchcommand.NewIndexResourceCommand(writer),
		}
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Searcher() core.Searcher {
	if f == nil {
		return nil
	}
	return f.searcher
}

func (f *Facade) Writer() core.IndexWriter {
	if f == nil {
		return nil
	}
	return f.writer
}

// resolveIndexWriter falls back to the searcher itself, then to the index it
// was built with.
func resolveIndexWriter(searcher core.Searcher) core.IndexWriter {
	if writer, ok := searcher.(core.IndexWriter); ok {
		return writer
	}
	provider, ok := searcher.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	if writer, ok := provider.Dependencies().Index.(core.IndexWriter); ok {
		return writer
	}
	return nil
}
