//go:build !windows && !plan9

package logging

import (
	"fmt"
	"io"
	"log/syslog"

	"github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"
)

// attachSyslog routes entries to the local syslog daemon.
func attachSyslog(logger *logrus.Logger) (io.Closer, error) {
	hook, err := lsyslog.NewSyslogHook("", "", syslog.LOG_INFO|syslog.LOG_DAEMON, "cow")
	if err != nil {
		return nil, fmt.Errorf("connect syslog: %w", err)
	}
	logger.AddHook(hook)
	logger.SetOutput(io.Discard)
	return hook.Writer, nil
}
