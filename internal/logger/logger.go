package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the application logger. Outside of GIN_MODE=release it logs human readable text at
// debug level.
func New(output io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(new(logrus.JSONFormatter))
	l.SetLevel(logrus.InfoLevel)

	if os.Getenv("GIN_MODE") != "release" {
		l.SetLevel(logrus.DebugLevel)
		l.SetFormatter(new(logrus.TextFormatter))
	}

	return l
}
