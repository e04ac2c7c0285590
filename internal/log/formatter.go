// Package log provides logrus formatter construction for peoplesync.
package log

import (
	"time"

	"github.com/sirupsen/logrus"
)

// NewFormatter returns the standard peoplesync log formatter. JSON
// output is intended for service managers and log shippers, text for
// interactive use.
func NewFormatter(json bool) logrus.Formatter {
	if json {
		return &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
}
