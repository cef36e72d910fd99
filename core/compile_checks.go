package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ TokenSource     = (*TokenLifecycle)(nil)
	_ ChainLister     = (*ChainCatalog)(nil)
	_ Notifier        = NotifierFunc(nil)
	_ TokenStateCodec = JSONTokenStateCodec{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
