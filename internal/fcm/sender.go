package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	httpclient "notice-push/internal/common/http"
	"notice-push/internal/common/metrics"

	fcmv1 "google.golang.org/api/fcm/v1"
)

// DefaultEndpoint is the FCM HTTP v1 API host.
const DefaultEndpoint = "https://fcm.googleapis.com"

// Classification is the caller-facing verdict on a failed send.
type Classification string

const (
	ClassInvalidToken Classification = "invalid_token"
	ClassRetryable    Classification = "retryable"
	ClassFatal        Classification = "fatal"
)

// SendResult is returned for every completed HTTP exchange, 2xx or not.
type SendResult struct {
	OK     bool
	Status int
	Body   string
}

// Sender posts messages to the per-project send endpoint.
type Sender struct {
	client   *httpclient.Client
	endpoint string
}

func NewSender(client *httpclient.Client, endpoint string) *Sender {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Sender{client: client, endpoint: strings.TrimRight(endpoint, "/")}
}

// SendURL returns the messages:send URL for projectID.
func (s *Sender) SendURL(projectID string) string {
	return fmt.Sprintf("%s/v1/projects/%s/messages:send", s.endpoint, projectID)
}

// Send never fails on a non-2xx status; err is set only when no response was
// received (network failure or timeout).
func (s *Sender) Send(ctx context.Context, projectID, accessToken string, msg *fcmv1.SendMessageRequest) (*SendResult, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	start := time.Now()
	resp, err := s.client.PostJSON(ctx, s.SendURL(projectID), accessToken, bytes.NewReader(payload))
	metrics.PushSendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &SendResult{
		OK:     resp.StatusCode >= 200 && resp.StatusCode <= 299,
		Status: resp.StatusCode,
		Body:   string(body),
	}, nil
}

// Classify inspects a provider error body case-insensitively.
func Classify(errorBody string) Classification {
	body := strings.ToLower(errorBody)
	switch {
	case strings.Contains(body, "unregistered"),
		strings.Contains(body, "invalid_argument") && strings.Contains(body, "token"):
		return ClassInvalidToken
	case strings.Contains(body, "unavailable"), strings.Contains(body, "internal"):
		return ClassRetryable
	default:
		return ClassFatal
	}
}

// ClassifyOutcome folds transport failures and bodiless 5xx responses into
// retryable; everything else goes through Classify.
func ClassifyOutcome(res *SendResult, err error) Classification {
	if err != nil || res == nil {
		return ClassRetryable
	}
	if strings.TrimSpace(res.Body) == "" &&
		(res.Status == http.StatusInternalServerError || res.Status == http.StatusServiceUnavailable) {
		return ClassRetryable
	}
	return Classify(res.Body)
}
