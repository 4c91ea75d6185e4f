package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"substitute_sms_notifier/internal/infra/config"
)

// Log is shared by every component; use Component to tag entries.
var Log = logrus.New()

// Init applies LOG_LEVEL and ENVIRONMENT to Log. Production and staging log JSON,
// anything else logs human-readable text.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(formatterFor(cfg.Environment))

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
		Log.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
	}
	Log.SetLevel(level)

	Log.WithFields(logrus.Fields{
		"level":       level.String(),
		"environment": cfg.Environment,
	}).Debug("Logger initialized")
}

func formatterFor(environment string) logrus.Formatter {
	switch strings.ToLower(environment) {
	case "production", "staging":
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	default:
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"}
	}
}

// Component returns an entry tagged with the given component name.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
