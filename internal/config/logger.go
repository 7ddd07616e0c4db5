package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide structured logger. It is usable before InitLogger
// runs so packages and tests never see a nil logger.
var Log = logrus.New()

// InitLogger switches Log to JSON on stdout at the given level.
// Unknown levels fall back to info.
func InitLogger(level string) {
	Log.SetFormatter(&logrus.JSONFormatter{})
	Log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)
}
