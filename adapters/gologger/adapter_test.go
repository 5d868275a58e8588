package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestNewPrefersProviderOverLogger(t *testing.T) {
	direct := &recordingLogger{id: "direct"}
	provider := &namingProvider{logger: &recordingLogger{id: "provider"}}

	loggers := New(provider, direct)
	if got := loggers.Root().(*recordingLogger); got.id != "provider" {
		t.Fatalf("expected provider logger, got %q", got.id)
	}
	if provider.names[0] != RootLoggerName {
		t.Fatalf("expected root resolved as %q, got %v", RootLoggerName, provider.names)
	}

	loggers = New(nil, direct)
	if got := loggers.Root().(*recordingLogger); got.id != "direct" {
		t.Fatalf("expected direct logger without provider, got %q", got.id)
	}
	if loggers.Provider() == nil {
		t.Fatalf("expected a provider wrapping the direct logger")
	}
}

func TestNamedUsesComponentLoggerNames(t *testing.T) {
	provider := &namingProvider{logger: &recordingLogger{id: "provider"}}
	loggers := New(provider, nil)

	loggers.Named(" Webhooks ")
	loggers.Named("slack")
	last := provider.names[len(provider.names)-2:]
	if last[0] != "integrations.webhooks" || last[1] != "integrations.slack" {
		t.Fatalf("unexpected logger names %v", provider.names)
	}
	if LoggerName("  ") != RootLoggerName {
		t.Fatalf("expected blank component to map to the root name")
	}
}

func TestZeroLoggersAreSilent(t *testing.T) {
	var loggers Loggers
	if loggers.Root() == nil || loggers.Named("zapier") == nil {
		t.Fatalf("expected nop loggers from the zero value")
	}
	provider, logger := loggers.Job()
	if provider != nil {
		t.Fatalf("expected no job provider without a host provider")
	}
	if logger == nil {
		t.Fatalf("expected job logger bridge")
	}
}

func TestJobBridgeForwardsToHostLogger(t *testing.T) {
	host := &recordingLogger{id: "provider"}
	loggers := New(&namingProvider{logger: host}, nil)

	jobProvider, jobLogger := loggers.Job()
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job bridges")
	}
	jobProvider.GetLogger("integrations.worker").Info("sync run", "sync_operation_id", "sync_1")
	if host.info.msg != "sync run" || host.info.args[1] != "sync_1" {
		t.Fatalf("expected bridged call, got %#v", host.info)
	}
}

var (
	_ glog.Logger         = (*recordingLogger)(nil)
	_ glog.LoggerProvider = (*namingProvider)(nil)
)

type namingProvider struct {
	logger *recordingLogger
	names  []string
}

func (p *namingProvider) GetLogger(name string) glog.Logger {
	p.names = append(p.names, name)
	if p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type loggedCall struct {
	msg  string
	args []any
}

type recordingLogger struct {
	id   string
	info loggedCall
}

func (l *recordingLogger) Trace(string, ...any) {}
func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}
func (l *recordingLogger) Fatal(string, ...any) {}

func (l *recordingLogger) Info(msg string, args ...any) {
	l.info = loggedCall{msg: msg, args: append([]any(nil), args...)}
}

func (l *recordingLogger) WithContext(context.Context) glog.Logger {
	return l
}
