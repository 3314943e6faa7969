// Package notify delivers push notifications for inbound chat messages via
// Pushover.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"resty.dev/v3"
)

const (
	// pushoverEndpoint is the Pushover API endpoint used for message delivery.
	pushoverEndpoint = "https://api.pushover.net/1/messages.json"
	// defaultTimeout is the HTTP timeout used for Pushover requests.
	defaultTimeout = 10 * time.Second
	// defaultCooldown is the minimum interval between alerts per sender, so a
	// burst of messages produces one notification.
	defaultCooldown = 2 * time.Minute
	// previewLimit truncates message bodies in notifications.
	previewLimit = 120
)

// Config describes the credentials and defaults for Pushover delivery.
type Config struct {
	// Token is the application API token.
	Token string
	// UserKey is the destination user key.
	UserKey string
	// Cooldown overrides the per-sender alert interval when positive.
	Cooldown time.Duration
}

// Notifier sends one alert per sender per cooldown window.
type Notifier struct {
	token    string
	userKey  string
	cooldown time.Duration
	rest     *resty.Client

	mu       sync.Mutex
	lastSent map[string]time.Time

	// now is a test seam.
	now func() time.Time
}

// New creates a notifier using the supplied config.
func New(cfg Config) (*Notifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("pushover token is required")
	}
	if strings.TrimSpace(cfg.UserKey) == "" {
		return nil, fmt.Errorf("pushover user key is required")
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	return &Notifier{
		token:    cfg.Token,
		userKey:  cfg.UserKey,
		cooldown: cooldown,
		rest:     resty.New().SetBaseURL(pushoverEndpoint).SetTimeout(defaultTimeout),
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// Close releases the underlying transport resources.
func (n *Notifier) Close() error {
	return n.rest.Close()
}

// MessageReceived sends an alert for an inbound message unless the sender is
// still within the cooldown window.
func (n *Notifier) MessageReceived(ctx context.Context, sender, body string) error {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return fmt.Errorf("sender is required")
	}

	n.mu.Lock()
	if last, ok := n.lastSent[sender]; ok && n.now().Sub(last) < n.cooldown {
		n.mu.Unlock()
		return nil
	}
	n.lastSent[sender] = n.now()
	n.mu.Unlock()

	resp, err := n.rest.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"token":   n.token,
			"user":    n.userKey,
			"title":   fmt.Sprintf("Message from %s", sender),
			"message": truncate(body, previewLimit),
		}).
		Post("")
	if err != nil {
		return fmt.Errorf("pushover request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("pushover returned status %d", resp.StatusCode())
	}
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
