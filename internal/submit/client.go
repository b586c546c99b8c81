// Package submit posts answer payloads to quiz submit endpoints.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/quizchain/internal/logging"
	"github.com/JakeFAU/quizchain/internal/metrics"
	"github.com/JakeFAU/quizchain/internal/quiz"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxPayload   = 1_000_000
	defaultExcerptBytes = 2000
)

// Config controls the submission client.
type Config struct {
	Timeout         time.Duration
	MaxPayloadBytes int
	ExcerptBytes    int
	UserAgent       string
}

// Client implements quiz.Submitter on a resty client.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger *zap.Logger
}

// New builds a Client. Zero config fields take defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = defaultMaxPayload
	}
	if cfg.ExcerptBytes <= 0 {
		cfg.ExcerptBytes = defaultExcerptBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Client{cfg: cfg, http: client, logger: logger}
}

// Encode serializes payload. If the answer cannot be encoded it is retried as
// a string; if that fails too the secret is redacted as a last resort.
func Encode(payload quiz.SubmissionPayload) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err == nil {
		return body, nil
	}
	payload.Answer = payload.Answer.Stringified()
	if body, err = json.Marshal(payload); err == nil {
		return body, nil
	}
	payload.Secret = logging.Redacted
	body, err = json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return body, nil
}

// Submit enforces the payload cap, POSTs the exact encoded bytes and
// interprets the reply. The outcome carries whatever was observed even when
// an error is returned.
func (c *Client) Submit(ctx context.Context, endpoint string, payload quiz.SubmissionPayload) (quiz.SubmitOutcome, error) {
	body, err := Encode(payload)
	if err != nil {
		return quiz.SubmitOutcome{}, &quiz.SubmitNetworkError{Endpoint: endpoint, Err: err}
	}
	if len(body) > c.cfg.MaxPayloadBytes {
		metrics.ObserveSubmission("too_large")
		return quiz.SubmitOutcome{}, &quiz.PayloadTooLargeError{Size: len(body), Limit: c.cfg.MaxPayloadBytes}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		metrics.ObserveSubmission("network_error")
		return quiz.SubmitOutcome{}, &quiz.SubmitNetworkError{
			Endpoint: endpoint,
			Err:      errors.New(logging.Scrub(err.Error(), payload.Secret)),
		}
	}

	raw := resp.Body()
	outcome := quiz.SubmitOutcome{
		StatusCode: resp.StatusCode(),
		Excerpt:    excerpt([]byte(logging.Scrub(string(raw), payload.Secret)), c.cfg.ExcerptBytes),
	}
	c.logger.Debug("submission answered",
		zap.String("endpoint", endpoint),
		zap.Int("status", outcome.StatusCode),
		zap.Int("bytes", len(raw)),
	)

	parsed, err := ParseResponse(raw)
	if err != nil {
		metrics.ObserveSubmission("parse_error")
		return outcome, &quiz.SubmitParseError{StatusCode: outcome.StatusCode, Err: err}
	}
	metrics.ObserveSubmission("answered")
	outcome.Response = parsed
	return outcome, nil
}

// ParseResponse reads correct, url and reason from a JSON object and ignores
// everything else. Fields of an unexpected type are treated as absent.
func ParseResponse(raw []byte) (*quiz.SubmitResponse, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	if fields == nil {
		return nil, errors.New("response is not a JSON object: null")
	}
	out := &quiz.SubmitResponse{}
	var correct bool
	if decodeField(fields, "correct", &correct) {
		out.Correct = &correct
	}
	decodeField(fields, "url", &out.URL)
	decodeField(fields, "reason", &out.Reason)
	return out, nil
}

// decodeField reports whether key held a non-null value of dst's type.
func decodeField(fields map[string]json.RawMessage, key string, dst any) bool {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// excerpt returns at most limit bytes of raw without splitting a rune.
func excerpt(raw []byte, limit int) string {
	if len(raw) <= limit {
		return string(raw)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return string(raw[:cut])
}
