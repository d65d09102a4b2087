package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookPoster delivers notifications as JSON posts to a chat webhook.
type WebhookPoster struct {
	URL    string
	Client *http.Client
}

func NewWebhookPoster(url string) *WebhookPoster {
	return &WebhookPoster{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *WebhookPoster) Post(channel string, body string) error {
	payload, err := json.Marshal(map[string]string{
		"channel": channel,
		"text":    body,
	})
	if err != nil {
		return err
	}

	resp, err := p.Client.Post(p.URL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
