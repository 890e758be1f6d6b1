package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/contestlens/internal/adapters/upstream"
	"github.com/okian/contestlens/pkg/logger"
	"github.com/okian/contestlens/pkg/metrics"
)

// proxyFailure is the body sent when the ranking service could not be
// reached or answered with something other than JSON.
const proxyFailure = "Failed to fetch contest history"

// ProxyDependencies defines the interface for forwarding history queries.
type ProxyDependencies interface {
	Query(ctx context.Context, handle string) (upstream.Raw, error)
}

// ProxyHandler handles proxy requests.
type ProxyHandler struct {
	deps   ProxyDependencies
	logger logger.Logger
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(deps ProxyDependencies, log logger.Logger) *ProxyHandler {
	return &ProxyHandler{deps: deps, logger: log}
}

type proxyRequest struct {
	Username string `json:"username"`
}

type proxyError struct {
	Error string `json:"error"`
}

// HandleProxy handles POST /api/leetcode requests. The ranking service reply
// is written back unchanged, status included.
func (h *ProxyHandler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	const op = "api.proxy"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req proxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	raw, err := h.deps.Query(r.Context(), req.Username)
	if err != nil {
		h.fail(w, r, WrapKind(op, ErrFetchFailed, err))
		return
	}
	if !json.Valid(raw.Body) {
		h.fail(w, r, NewKind(op, ErrFetchFailed))
		return
	}

	metrics.RecordProxyRequest(metrics.StatusClass(raw.StatusCode))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(raw.StatusCode)
	_, _ = w.Write(raw.Body)
}

func (h *ProxyHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn(r.Context(), "proxy request failed", logger.Error(err))
	metrics.RecordProxyRequest(metrics.StatusClass(http.StatusInternalServerError))
	writeJSON(w, http.StatusInternalServerError, proxyError{Error: proxyFailure})
}
