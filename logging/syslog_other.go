//go:build windows || plan9

package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

func attachSyslog(*logrus.Logger) (io.Closer, error) {
	return nil, ErrSyslogUnsupported
}
