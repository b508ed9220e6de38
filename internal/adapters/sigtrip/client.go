package sigtrip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"sigtrip_wrapper/internal/adapters/observability"
	"sigtrip_wrapper/internal/domain"
)

const (
	ProviderName = "sigtrip"
	DefaultURL   = "https://hotel.sigtrip.ai/mcp"

	methodCallTool  = "tools/call"
	methodListTools = "tools/list"

	maxBody = 8 << 20
)

// Client speaks JSON-RPC tool calls to the upstream MCP endpoint.
type Client struct {
	url     string
	hc      *http.Client
	key     string
	retries int
	rl      *rate.Limiter
	ids     atomic.Int64
}

type Options struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	Retries int
	RPS     int
}

func New(o Options) (*Client, error) {
	if o.URL == "" {
		return nil, fmt.Errorf("upstream URL is required")
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RPS <= 0 {
		o.RPS = 5
	}
	return &Client{
		url:     o.URL,
		hc:      &http.Client{Timeout: o.Timeout},
		key:     o.APIKey,
		retries: o.Retries,
		rl:      rate.NewLimiter(rate.Limit(o.RPS), o.RPS),
	}, nil
}

// URL returns the configured upstream endpoint.
func (c *Client) URL() string { return c.url }

// CallTool invokes a named upstream tool and decodes its structured result.
// Exhausted retries yield domain.ErrExhausted; an uninterpretable body
// yields domain.ErrUnparsed. Both mean "no data" to callers.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	data, _, err := c.CallToolRaw(ctx, name, args)
	return data, err
}

// CallToolRaw is CallTool that also returns the result's JSON text in
// upstream key order (nil for a text fallback).
func (c *Client) CallToolRaw(ctx context.Context, name string, args map[string]any) (map[string]any, []byte, error) {
	if args == nil {
		args = map[string]any{}
	}
	body, ctype, err := c.post(ctx, name, methodCallTool, map[string]any{"name": name, "arguments": args})
	if err != nil {
		return nil, nil, err
	}
	data, raw, err := DecodeRaw(body, ctype)
	switch {
	case err != nil:
		observability.ObserveDecode(name, "unparsed")
		log.Warn().Str("tool", name).Err(err).Msg("upstream_response_unparsed")
		return nil, nil, err
	case len(data) == 1 && data[FallbackTextKey] != nil:
		observability.ObserveDecode(name, FallbackTextKey)
	default:
		observability.ObserveDecode(name, "structured")
	}
	return data, raw, nil
}

// ListTools returns the result object of tools/list.
func (c *Client) ListTools(ctx context.Context) (map[string]any, error) {
	env, err := c.Call(ctx, methodListTools, nil)
	if err != nil {
		return nil, err
	}
	result, ok := env["result"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: tools/list carries no result", domain.ErrUnparsed)
	}
	return result, nil
}

// Call issues an arbitrary JSON-RPC method and returns the raw envelope.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	body, ctype, err := c.post(ctx, method, method, params)
	if err != nil {
		return nil, err
	}
	env, ok := ParseEnvelope(body, ctype)
	if !ok {
		log.Warn().Str("method", method).Msg("upstream_response_unparsed")
		return nil, fmt.Errorf("%w: no json-rpc envelope", domain.ErrUnparsed)
	}
	return env, nil
}

// post sends one JSON-RPC request with retries. Transport errors and
// non-2xx statuses are retried immediately, up to retries+1 attempts.
func (c *Client) post(ctx context.Context, label, method string, params map[string]any) (string, string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", "", err
	}

	envelope := map[string]any{
		"jsonrpc": "2.0",
		"id":      c.ids.Add(1),
		"method":  method,
	}
	if params != nil {
		envelope["params"] = params
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", "", err
	}

	attempts := c.retries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		body, ctype, status, err := c.do(ctx, label, payload)
		if err == nil {
			return body, ctype, nil
		}
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		lastErr = err
		log.Warn().Str("tool", label).Int("attempt", i+1).Int("status", status).Str("err_type", observability.LabelErr(err)).Err(err).Msg("upstream_call_failed")
	}

	log.Error().Str("tool", label).Int("attempts", attempts).Err(lastErr).Msg("upstream_call_exhausted")
	return "", "", fmt.Errorf("%w: %s after %d attempts: %v", domain.ErrExhausted, label, attempts, lastErr)
}

func (c *Client) do(ctx context.Context, label string, payload []byte) (string, string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream, application/json")
	req.Header.Set("User-Agent", "sigtrip-wrapper/1.0")
	if c.key != "" {
		req.Header.Set("apikey", c.key)
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(ProviderName, label, 0, time.Since(start))
		return "", "", 0, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	observability.ObserveExternal(ProviderName, label, resp.StatusCode, time.Since(start))
	if err != nil {
		return "", "", resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", resp.StatusCode, fmt.Errorf("bad status %d: %s", resp.StatusCode, snippet(b))
	}
	return string(b), resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
