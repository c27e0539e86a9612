package client

import (
	"fmt"
	"strings"

	"github.com/couchbase/gocbcore/v10"

	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
)

// GocbcoreLogger routes gocbcore's internal logging to a core.Logger.
type GocbcoreLogger struct {
	logger *core.Logger
}

// NewGocbcoreLogger creates a gocbcore logger writing to l.
func NewGocbcoreLogger(l *core.Logger) *GocbcoreLogger {
	return &GocbcoreLogger{logger: l.Named("gocbcore")}
}

// Log implements gocbcore.Logger.
func (g *GocbcoreLogger) Log(level gocbcore.LogLevel, offset int, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	switch level {
	case gocbcore.LogError:
		g.logger.Error(msg)
	case gocbcore.LogWarn:
		g.logger.Warn(msg)
	case gocbcore.LogInfo:
		// retries are frequent under load
		if strings.Contains(format, "Will retry request") {
			g.logger.Debug(msg)
		} else {
			g.logger.Info(msg)
		}
	default:
		g.logger.Debug(msg)
	}
	return nil
}

// InstallLogger makes l the process-wide gocbcore logger with full redaction.
func InstallLogger(l *core.Logger) {
	gocbcore.SetLogger(NewGocbcoreLogger(l))
	gocbcore.SetLogRedactionLevel(gocbcore.RedactFull)
}
