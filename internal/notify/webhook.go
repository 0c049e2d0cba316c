package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// webhookNotifier POSTs the run Event as JSON. Run id and status are also
// sent as headers so receivers can route without parsing the body.
type webhookNotifier struct {
	url     string
	headers http.Header
	client  *http.Client
}

func NewWebhook(url string, headers map[string]string) (Notifier, error) {
	target := strings.TrimSpace(url)
	if target == "" {
		return nil, fmt.Errorf("config.url is required")
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return nil, fmt.Errorf("config.url must be http or https, got %q", target)
	}

	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}

	return &webhookNotifier{
		url:     target,
		headers: h,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (w *webhookNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "deltabackup")
	req.Header.Set("X-Deltabackup-Run-Id", event.RunID)
	req.Header.Set("X-Deltabackup-Status", event.Status)
	for k, vs := range w.headers {
		req.Header[k] = vs
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
