package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Registry           = (*ProviderRegistry)(nil)
	_ KVStore            = (*MemoryStore)(nil)
	_ IntegrationService = (*Service)(nil)
	_ MetricsRecorder    = NopMetricsRecorder{}
	_ CompletionNotifier = NopCompletionNotifier{}
	_ CompletionNotifier = CompletionNotifierFunc(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
