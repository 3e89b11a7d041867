package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/feedsync/internal/metrics"
)

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, strings.TrimSpace(string(e.Body)))
}

// HTTPProvider implements Provider for JSON-RPC and REST over HTTP.
type HTTPProvider struct {
	*BaseProvider

	endpoint   string
	httpClient *http.Client
}

// NewHTTPProvider creates a new HTTP-based provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		BaseProvider: NewBaseProvider(name),
		endpoint:     strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result any       `json:"result"`
	Error  *rpcError `json:"error"`
}

// Call makes a single JSON-RPC 2.0 call and returns the decoded result field.
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (any, error) {
	if params == nil {
		params = []any{}
	}
	body, err := p.do(ctx, method, http.MethodPost, p.endpoint, rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.fail(method)
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if e := resp.Error; e != nil {
		p.fail(method)
		if isThrottleMessage(e.Message) {
			return nil, fmt.Errorf("throttle in rpc error: %s", e.Message)
		}
		return nil, fmt.Errorf("rpc error %d: %s", e.Code, e.Message)
	}
	return resp.Result, nil
}

// Execute performs a REST call relative to the endpoint.
func (p *HTTPProvider) Execute(ctx context.Context, op Operation) (any, error) {
	method := op.Method
	if method == "" {
		method = http.MethodGet
	}

	target := p.endpoint + "/" + strings.TrimLeft(op.Name, "/")
	if len(op.Query) > 0 {
		target += "?" + op.Query.Encode()
	}

	var reqBody any
	if method != http.MethodGet {
		reqBody = op.Body
	}

	body, err := p.do(ctx, op.Name, method, target, reqBody)
	if err != nil {
		return nil, err
	}

	if op.Result != nil {
		if err := json.Unmarshal(body, op.Result); err != nil {
			p.fail(op.Name)
			return nil, fmt.Errorf("parse response: %w", err)
		}
		return op.Result, nil
	}

	var result any
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			p.fail(op.Name)
			return nil, fmt.Errorf("parse response: %w", err)
		}
	}
	return result, nil
}

// do sends one request and returns the body of a 2xx response. Health is recorded for
// transport and status failures; parse failures are recorded by the caller.
func (p *HTTPProvider) do(ctx context.Context, label, method, target string, payload any) ([]byte, error) {
	metrics.RPCCallsTotal.WithLabelValues(p.Name, label).Inc()

	if wait := p.Backoff(); wait > 0 {
		p.fail(label)
		return nil, fmt.Errorf("provider throttled, retry after: %v", wait)
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			p.fail(label)
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		p.fail(label)
		return nil, fmt.Errorf("create request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.fail(label)
		return nil, fmt.Errorf("%s %s: %w", method, label, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.fail(label)
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := p.checkStatus(resp, body); err != nil {
		p.fail(label)
		return nil, err
	}

	p.recordSuccess(time.Since(start))
	return body, nil
}

// checkStatus maps a non-2xx response to an error, starting a back-off when the endpoint
// signals throttling.
func (p *HTTPProvider) checkStatus(resp *http.Response, body []byte) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	switch code {
	case http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		p.throttle(code, retryAfter)
		return fmt.Errorf("rate limited (429), retry after: %s", retryAfter)
	case http.StatusForbidden:
		p.throttle(code, "")
	default:
		if isThrottleMessage(string(body)) {
			return fmt.Errorf("throttle detected in response: %s", body)
		}
	}
	return &StatusError{Code: code, Body: body}
}

func (p *HTTPProvider) fail(label string) {
	metrics.RPCErrorsTotal.WithLabelValues(p.Name, label).Inc()
	p.recordFailure()
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
