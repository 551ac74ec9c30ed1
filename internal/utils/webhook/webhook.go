package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/atomport/solver/internal/utils/logger"
)

// Client pings external monitoring webhooks.
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
}

func New(logger *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// CallHeartbeatWebhook makes a simple GET request to the webhook URL so an
// external uptime monitor can alert when the solver stops checking in.
func (c *Client) CallHeartbeatWebhook(ctx context.Context, webhookURL string) {
	if webhookURL == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, "GET", webhookURL, nil)
	if err != nil {
		c.logger.Error("Failed to create webhook request", map[string]string{
			"url":   webhookURL,
			"error": err.Error(),
		})
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to call heartbeat webhook", map[string]string{
			"url":   webhookURL,
			"error": err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	c.logger.Debug("heartbeat webhook called", map[string]string{
		"url":         webhookURL,
		"status_code": resp.Status,
	})
}
