package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-kasir/internal/obs"
)

// WebhookSender posts signed event payloads to a configured endpoint.
type WebhookSender struct {
	URL    string
	Secret string
	Client *http.Client
}

// Send delivers the payload. Non-2xx responses are errors so asynq retries
// with its own backoff.
func (s *WebhookSender) Send(ctx context.Context, payload TaskPayload) error {
	if s == nil || s.URL == "" {
		return nil
	}
	if err := validateURL(s.URL); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	client := s.Client
	if client == nil {
		client = HTTPClient(5 * time.Second)
	}

	ts := time.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "kasir-api-webhooks/1.0")
	req.Header.Set("X-Event-ID", payload.EventID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(s.Secret, ts, payload.EventID, body))

	resp, err := client.Do(req)
	if err != nil {
		if obs.NotificationDeliveries != nil {
			obs.NotificationDeliveries.WithLabelValues("error").Inc()
		}
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if obs.NotificationDeliveries != nil {
			obs.NotificationDeliveries.WithLabelValues("rejected").Inc()
		}
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	if obs.NotificationDeliveries != nil {
		obs.NotificationDeliveries.WithLabelValues("delivered").Inc()
	}
	return nil
}

// ComputeSignature derives the HMAC-SHA256 signature over timestamp, event id,
// and body.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns an HTTP client configured for webhook delivery.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	return nil
}
