package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-search/core"
)

// DefaultName is the logger name used when callers pass an empty one.
const DefaultName = "search"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(loggerName(name), provider, logger)
}

// ServiceOptions resolves logging once and returns the matching core options,
// so every search component built from them shares one logger.
func ServiceOptions(name string, provider glog.LoggerProvider, logger glog.Logger) []core.Option {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return []core.Option{
		core.WithLoggerProvider(resolvedProvider),
		core.WithLogger(resolvedLogger),
	}
}

// ResolveForJob resolves glog logger/provider then returns the go-job bridges
// used by the ingestion worker.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	var (
		jobProvider job.LoggerProvider
		jobLogger   job.Logger
	)
	if resolvedProvider != nil {
		jobProvider = job.GoLoggerProvider(resolvedProvider)
	}
	if resolvedLogger != nil {
		jobLogger = job.GoLogger(resolvedLogger)
	}
	return resolvedProvider, resolvedLogger, jobProvider, jobLogger
}

func loggerName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return DefaultName
}
