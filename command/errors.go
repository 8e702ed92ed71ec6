package command

import "github.com/goliatone/go-search/core"

func commandDependencyError(message string) error {
	return core.DependencyError("command: " + message)
}

func commandViolations() *core.Violations {
	return core.NewViolations("command")
}
