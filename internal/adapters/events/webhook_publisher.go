package events

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
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/ports"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	SignatureHeader       = "X-Mailroom-Signature"
	maxErrorBody          = 512
)

var (
	ErrBadSignature   = errors.New("webhook signature mismatch")
	ErrStaleSignature = errors.New("webhook signature outside tolerance")
)

// WebhookPublisher POSTs outbox envelopes to a subscriber such as a front-desk
// screen. Timeouts, 408, 429 and 5xx answers are retried by the dispatcher;
// any other non-2xx answer is reported as ports.ErrUndeliverable.
type WebhookPublisher struct {
	url    string
	secret []byte
	client *http.Client
	now    func() time.Time
}

type WebhookOption func(*WebhookPublisher)

func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(p *WebhookPublisher) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

func WithWebhookClient(c *http.Client) WebhookOption {
	return func(p *WebhookPublisher) { p.client = c }
}

func NewWebhookPublisher(url, secret string, opts ...WebhookOption) *WebhookPublisher {
	p := &WebhookPublisher{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: defaultWebhookTimeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends the envelope as JSON with these headers:
//
//	X-Mailroom-Topic:     <topic>
//	X-Mailroom-Delivery:  <event id>, stable across retries
//	X-Mailroom-Audit-Id:  <audit entry id>
//	X-Mailroom-Signature: t=<unix seconds>,v1=<hex HMAC-SHA256 of "t.body">
func (p *WebhookPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Mailroom-Topic", topic)
	req.Header.Set("X-Mailroom-Delivery", event.EventID)
	req.Header.Set("X-Mailroom-Audit-Id", strconv.FormatInt(event.AuditID, 10))
	req.Header.Set(SignatureHeader, SignPayload(p.secret, p.now(), body))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err = fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return err
	default:
		return fmt.Errorf("%w: %w", ports.ErrUndeliverable, err)
	}
}

// SignPayload renders the signature header value for body sent at ts.
func SignPayload(secret []byte, ts time.Time, body []byte) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + unix + ",v1=" + mac(secret, unix, body)
}

func mac(secret []byte, unix string, body []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(unix))
	h.Write([]byte{'.'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a signature header against body. Signatures older or
// newer than tolerance relative to now are rejected.
func VerifySignature(secret string, body []byte, header string, now time.Time, tolerance time.Duration) error {
	var unix, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch k {
		case "t":
			unix = v
		case "v1":
			sig = v
		}
	}
	sec, err := strconv.ParseInt(unix, 10, 64)
	if err != nil || sig == "" {
		return fmt.Errorf("%w: malformed header", ErrBadSignature)
	}
	if !hmac.Equal([]byte(sig), []byte(mac([]byte(secret), unix, body))) {
		return ErrBadSignature
	}
	if age := now.Sub(time.Unix(sec, 0)); age > tolerance || age < -tolerance {
		return ErrStaleSignature
	}
	return nil
}
