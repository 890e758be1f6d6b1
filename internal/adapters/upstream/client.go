package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/contestlens/internal/domain/model"
	"github.com/okian/contestlens/pkg/logger"
	"github.com/okian/contestlens/pkg/metrics"
)

// Default client configuration constants.
const (
	DefaultEndpoint  = "https://leetcode.com/graphql"
	defaultTimeout   = 10 * time.Second
	defaultRetries   = 2
	defaultBackoff   = 250 * time.Millisecond
	defaultUserAgent = "contestlens/1.0"
	maxBodyBytes     = 8 << 20
)

// historyQuery selects every ContestRecord field for a handle.
const historyQuery = `
query getContestHistory($username: String!) {
  userContestRankingHistory(username: $username) {
    attended
    rating
    ranking
    problemsSolved
    totalProblems
    finishTimeInSeconds
    trendDirection
    contest {
      title
      startTime
    }
  }
}`

// Fetcher returns the raw contest history for a handle.
type Fetcher interface {
	FetchHistory(ctx context.Context, handle string) ([]model.ContestRecord, error)
}

// Raw is an upstream response passed through untouched.
type Raw struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client queries the ranking service's GraphQL endpoint.
type Client struct {
	endpoint  string
	timeout   time.Duration
	retries   int
	backoff   time.Duration
	userAgent string
	http      *http.Client
	logger    logger.Logger
}

// NewClient creates a client with configuration options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint:  DefaultEndpoint,
		timeout:   defaultTimeout,
		retries:   defaultRetries,
		backoff:   defaultBackoff,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	return c
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// Query sends the history query for handle and returns the response as is.
// Transport failures and 5xx responses are retried with linear backoff; the
// last response is returned once attempts run out. An error is returned only
// when no response was received at all.
func (c *Client) Query(ctx context.Context, handle string) (Raw, error) {
	payload, err := json.Marshal(graphQLRequest{
		Query:     historyQuery,
		Variables: map[string]any{"username": handle},
	})
	if err != nil {
		return Raw{}, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			metrics.RecordUpstreamRetry()
			if err := sleep(ctx, c.backoff*time.Duration(attempt)); err != nil {
				return Raw{}, err
			}
		}

		raw, err := c.do(ctx, payload)
		if err != nil {
			if ctx.Err() != nil {
				return Raw{}, ctx.Err()
			}
			lastErr = err
			c.logger.Warn(ctx, "upstream attempt failed",
				logger.String("handle", handle),
				logger.Int("attempt", attempt+1),
				logger.Error(err),
			)
			continue
		}
		if raw.StatusCode >= http.StatusInternalServerError && attempt < c.retries {
			c.logger.Warn(ctx, "upstream returned server error",
				logger.String("handle", handle),
				logger.Int("attempt", attempt+1),
				logger.Int("status", raw.StatusCode),
			)
			continue
		}
		return raw, nil
	}
	return Raw{}, lastErr
}

func (c *Client) do(ctx context.Context, payload []byte) (Raw, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Raw{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordUpstreamRequest(metrics.StatusClass(0), latency)
		return Raw{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RecordUpstreamRequest(metrics.StatusClass(0), latency)
		return Raw{}, err
	}
	metrics.RecordUpstreamRequest(metrics.StatusClass(resp.StatusCode), latency)
	metrics.RecordUpstreamBodySize(len(body))

	return Raw{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// FetchHistory queries handle and decodes its contest history. Every failure
// is reported as ErrFetchFailed.
func (c *Client) FetchHistory(ctx context.Context, handle string) ([]model.ContestRecord, error) {
	if strings.TrimSpace(handle) == "" {
		return nil, fail(causeBlankHandle, nil)
	}
	raw, err := c.Query(ctx, handle)
	if err != nil {
		return nil, fail(causeTransport, err)
	}
	return DecodeHistory(raw)
}

type graphQLError struct {
	Message string `json:"message"`
}

type historyEnvelope struct {
	Data *struct {
		History *[]model.ContestRecord `json:"userContestRankingHistory"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// DecodeHistory extracts the contest history from an upstream response.
func DecodeHistory(raw Raw) ([]model.ContestRecord, error) {
	if raw.StatusCode < http.StatusOK || raw.StatusCode >= http.StatusMultipleChoices {
		return nil, fail(causeStatus, fmt.Errorf("status %d", raw.StatusCode))
	}

	var env historyEnvelope
	if err := json.Unmarshal(raw.Body, &env); err != nil {
		return nil, fail(causeDecode, err)
	}
	if len(env.Errors) > 0 {
		return nil, fail(causeGraphQL, errors.New(env.Errors[0].Message))
	}
	if env.Data == nil || env.Data.History == nil {
		return nil, fail(causeNotFound, nil)
	}
	return *env.Data.History, nil
}

func fail(cause string, err error) error {
	metrics.RecordUpstreamFailure(cause)
	metrics.RecordErrorByComponent("upstream", cause)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrFetchFailed, cause)
	}
	return fmt.Errorf("%w: %s: %w", ErrFetchFailed, cause, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Fetcher = (*Client)(nil)
