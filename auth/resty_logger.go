package auth

import (
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/goliatone/go-mintflow/core"
)

type restyLogger struct {
	logger core.Logger
}

// NewRestyLogger routes resty client diagnostics to a glog logger.
func NewRestyLogger(logger core.Logger) resty.Logger {
	return restyLogger{logger: logger}
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(formatRestyMessage(format, v...), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(formatRestyMessage(format, v...), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(formatRestyMessage(format, v...), "component", "resty")
}

func formatRestyMessage(format string, v ...any) string {
	if len(v) == 0 {
		return format
	}
	return fmt.Sprintf(format, v...)
}
