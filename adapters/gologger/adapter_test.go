package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-search/core"
)

func TestResolveDeterministicFallback(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	_, resolved := Resolve("search", provider, loggerOnly)
	if got := resolved.(*capturingLogger); got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	resolvedProvider, resolved := Resolve("", nil, loggerOnly)
	if got := resolved.(*capturingLogger); got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	_, resolved = Resolve("search", nil, nil)
	if resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestResolveDefaultsLoggerName(t *testing.T) {
	provider := &capturingProvider{logger: &capturingLogger{id: "provider"}}
	Resolve("  ", provider, nil)
	if provider.lastName != DefaultName {
		t.Fatalf("expected default logger name %q, got %q", DefaultName, provider.lastName)
	}
}

func TestServiceOptionsFeedSearchService(t *testing.T) {
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	opts := append(ServiceOptions("search", provider, nil), core.WithIndex(core.NewMemoryIndex()))
	svc, err := core.NewService(core.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil || deps.LoggerProvider == nil {
		t.Fatalf("expected resolved logging dependencies")
	}
}

func TestGoJobBridgeCompatibility(t *testing.T) {
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	_, _, jobProvider, jobLogger := ResolveForJob("search.ingest", provider, nil)
	if jobProvider == nil {
		t.Fatalf("expected go-job provider bridge")
	}
	if jobLogger == nil {
		t.Fatalf("expected go-job logger bridge")
	}

	bridged := jobProvider.GetLogger("search.ingest")
	bridged.Info("indexed", "org_id", "org_1")

	captured := providerLogger.lastInfo
	if captured.msg != "indexed" {
		t.Fatalf("expected bridged message, got %q", captured.msg)
	}
	if captured.args[0] != "org_id" || captured.args[1] != "org_1" {
		t.Fatalf("expected bridged args, got %#v", captured.args)
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger   *capturingLogger
	lastName string
}

func (p *capturingProvider) GetLogger(name string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	p.lastName = name
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id       string
	lastInfo infoCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{
		msg:  msg,
		args: append([]any(nil), args...),
	}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
