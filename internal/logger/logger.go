// Package logger holds the process-wide logrus logger.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var _log = logrus.New()

// Init sets the output and level. Debug logs as text, otherwise JSON.
func Init(debug bool, out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	_log.SetOutput(out)
	if debug {
		_log.SetLevel(logrus.DebugLevel)
		_log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		_log.SetLevel(logrus.InfoLevel)
		_log.SetFormatter(&logrus.JSONFormatter{})
	}
}

// Log returns a standard logger entry to use across packages.
func Log() *logrus.Entry {
	return logrus.NewEntry(_log)
}

// WithFields returns a logger entry with provided fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log().WithFields(fields)
}

// ForCommand returns an entry tagged with the chat command and invoking user.
func ForCommand(command, userID string) *logrus.Entry {
	return Log().WithFields(logrus.Fields{"command": command, "user_id": userID})
}

const redacted = "[REDACTED]"

// redactHook masks known secrets in messages and string fields.
type redactHook struct {
	mu      sync.RWMutex
	secrets []string
}

var redaction = &redactHook{}

func init() {
	_log.AddHook(redaction)
}

// RedactSecrets masks each non-empty secret in every later log line.
func RedactSecrets(secrets ...string) {
	redaction.mu.Lock()
	defer redaction.mu.Unlock()
	for _, s := range secrets {
		if s != "" {
			redaction.secrets = append(redaction.secrets, s)
		}
	}
}

func (h *redactHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *redactHook) Fire(e *logrus.Entry) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.secrets) == 0 {
		return nil
	}
	e.Message = h.mask(e.Message)
	for k, v := range e.Data {
		switch val := v.(type) {
		case string:
			e.Data[k] = h.mask(val)
		case error:
			if masked := h.mask(val.Error()); masked != val.Error() {
				e.Data[k] = masked
			}
		}
	}
	return nil
}

func (h *redactHook) mask(s string) string {
	for _, secret := range h.secrets {
		s = strings.ReplaceAll(s, secret, redacted)
	}
	return s
}
