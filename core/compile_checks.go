package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ EventEmitter   = (*EventBus)(nil)
	_ EventObserver  = (*ChannelObserver)(nil)
	_ EventObserver  = (*LoggingObserver)(nil)
	_ EventObserver  = EventObserverFunc{}
	_ WebhookHandler = WebhookHandlerFunc(nil)
	_ SyncExecutor   = SyncExecutorFunc(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
