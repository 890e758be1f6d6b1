package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/contestlens/internal/domain/model"
)

// ProxyPath is the route of the contest history proxy.
const ProxyPath = "/api/leetcode"

// ProxyClient fetches history through a running contestlens proxy instead of
// calling the ranking service directly.
type ProxyClient struct {
	baseURL string
	http    *http.Client
}

// NewProxyClient creates a client for the proxy at baseURL.
func NewProxyClient(baseURL string, timeout time.Duration) *ProxyClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ProxyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchHistory posts handle to the proxy and decodes the forwarded response.
func (p *ProxyClient) FetchHistory(ctx context.Context, handle string) ([]model.ContestRecord, error) {
	if strings.TrimSpace(handle) == "" {
		return nil, fail(causeBlankHandle, nil)
	}

	body, err := json.Marshal(map[string]string{"username": handle})
	if err != nil {
		return nil, fail(causeTransport, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+ProxyPath, bytes.NewReader(body))
	if err != nil {
		return nil, fail(causeTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fail(causeTransport, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fail(causeTransport, err)
	}
	return DecodeHistory(Raw{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        payload,
	})
}

var _ Fetcher = (*ProxyClient)(nil)
