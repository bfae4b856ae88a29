// Package logging configures the structured JSON logger shared by both
// binaries, on github.com/sirupsen/logrus — the logging library every
// cobra-based CLI in the retrieved corpus (docker-compose, scon, vmgr,
// macvmgr) reaches for, rather than the standard library's log package.
package logging

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a logrus.Logger writing structured JSON lines to stderr at
// the given level ("debug", "info", "warn", "error"; invalid values fall
// back to "info").
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// AccessEntry is the structured shape of one completed server-role
// response, logged once per request. The field set mirrors
// bolt/middleware/logger.go's LogEntry; only the transport (logrus
// instead of a hand-rolled json.Encoder call) differs.
type AccessEntry struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// LogAccess emits one AccessEntry as a structured logrus entry at info
// level.
func LogAccess(log *logrus.Logger, e AccessEntry) {
	fields := logrus.Fields{
		"method":      e.Method,
		"path":        e.Path,
		"status":      e.Status,
		"duration_ms": e.DurationMS,
	}
	if e.Error != "" {
		fields["error"] = e.Error
	}
	log.WithFields(fields).Info("request")
}
