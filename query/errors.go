package query

import "github.com/goliatone/go-search/core"

func queryDependencyError(message string) error {
	return core.DependencyError("query: " + message)
}

func queryViolations() *core.Violations {
	return core.NewViolations("query")
}
