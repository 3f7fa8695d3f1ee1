package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus behind the small surface the rest of the code uses.
type Logger struct {
	l *logrus.Logger
}

func NewLogger() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{l: l}
}

func NewLoggerWithOutput(w io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{l: l}
}

func (lg *Logger) SetDebug(on bool) {
	if lg == nil || lg.l == nil {
		return
	}
	if on {
		lg.l.SetLevel(logrus.DebugLevel)
		return
	}
	lg.l.SetLevel(logrus.InfoLevel)
}

func (lg *Logger) Printf(format string, args ...any) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Infof(format, args...)
}

func (lg *Logger) Debugf(format string, args ...any) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Debugf(format, args...)
}

func (lg *Logger) Errorf(format string, args ...any) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Errorf(format, args...)
}
