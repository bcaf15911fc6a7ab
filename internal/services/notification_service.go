package services

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/containrrr/shoutrrr"
	"github.com/sirupsen/logrus"

	"github.com/Wikid82/proxybot/internal/logger"
)

// Notification event types.
const (
	EventProxyCreated   = "proxy_created"
	EventProxyDeleted   = "proxy_deleted"
	EventLedgerPruned   = "ledger_pruned"
	EventLedgerDegraded = "ledger_degraded"
)

// Test hook to allow overriding the shoutrrr sender
var shoutrrrSend = shoutrrr.Send

// Notifier receives lifecycle events worth telling an operator about.
type Notifier interface {
	SendExternal(eventType, title, message string)
}

// NotificationService fans events out to shoutrrr URLs. Sends run in the
// background; failures are logged and never reach the caller.
type NotificationService struct {
	urls []string
	wg   sync.WaitGroup
}

func NewNotificationService(urls []string) *NotificationService {
	normalized := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		normalized = append(normalized, normalizeURL(u))
	}
	return &NotificationService{urls: normalized}
}

var discordWebhookRegex = regexp.MustCompile(`^https://discord(?:app)?\.com/api/webhooks/(\d+)/([a-zA-Z0-9_-]+)`)

// normalizeURL turns a plain Discord webhook URL into shoutrrr's form.
func normalizeURL(rawURL string) string {
	matches := discordWebhookRegex.FindStringSubmatch(rawURL)
	if len(matches) == 3 {
		return fmt.Sprintf("discord://%s@%s", matches[2], matches[1])
	}
	return rawURL
}

// Enabled reports whether any destination is configured.
func (s *NotificationService) Enabled() bool {
	return s != nil && len(s.urls) > 0
}

func (s *NotificationService) SendExternal(eventType, title, message string) {
	if !s.Enabled() {
		return
	}
	// Use newline for better formatting in chat apps
	msg := fmt.Sprintf("%s\n\n%s", title, message)
	for i, url := range s.urls {
		s.wg.Add(1)
		go func(idx int, url string) {
			defer s.wg.Done()
			if err := shoutrrrSend(url, msg); err != nil {
				logger.Log().WithFields(logrus.Fields{
					"event":       eventType,
					"destination": idx,
				}).WithError(err).Warn("Failed to send notification")
			}
		}(i, url)
	}
}

// Wait blocks until in-flight sends finish.
func (s *NotificationService) Wait() {
	if s != nil {
		s.wg.Wait()
	}
}
