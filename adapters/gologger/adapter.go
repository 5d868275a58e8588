package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// RootLoggerName names the registry logger. Components log under
// integrations.<component>.
const RootLoggerName = "integrations"

// Loggers resolves named loggers for the runtime's components from a host
// provider, a host logger, or neither. The zero value logs nothing.
type Loggers struct {
	provider glog.LoggerProvider
	root     glog.Logger
}

// New resolves the root logger with precedence provider > logger > nop.
func New(provider glog.LoggerProvider, logger glog.Logger) Loggers {
	provider, logger = glog.Resolve(RootLoggerName, provider, logger)
	return Loggers{provider: provider, root: logger}
}

func (l Loggers) Provider() glog.LoggerProvider {
	return l.provider
}

func (l Loggers) Root() glog.Logger {
	return glog.Ensure(l.root)
}

// Named returns the logger for one component or integration. Without a
// provider every name shares the root logger.
func (l Loggers) Named(component string) glog.Logger {
	_, logger := glog.Resolve(LoggerName(component), l.provider, l.root)
	return logger
}

// Job bridges the resolved loggers onto the go-job logger contracts used by
// the sync worker.
func (l Loggers) Job() (job.LoggerProvider, job.Logger) {
	var provider job.LoggerProvider
	if l.provider != nil {
		provider = job.GoLoggerProvider(l.provider)
	}
	return provider, job.GoLogger(l.Root())
}

// LoggerName returns integrations.<component>, or the root name when
// component is blank.
func LoggerName(component string) string {
	component = strings.ToLower(strings.TrimSpace(component))
	if component == "" {
		return RootLoggerName
	}
	return RootLoggerName + "." + component
}
