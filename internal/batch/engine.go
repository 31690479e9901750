// Package batch executes JSON $batch requests: validation, dependsOn
// ordering, $<id>.<property> references and dispatch of each sub-request
// through an injected Dispatcher.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/Project-Sylos/Mirage/internal/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxRequests is the per-batch request limit
const DefaultMaxRequests = 20

// Request is one node of a batch
type Request struct {
	ID        string            `json:"id"`
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      json.RawMessage   `json:"body,omitempty"`
	DependsOn []string          `json:"dependsOn,omitempty"`
}

// Response is the captured result of one node
type Response struct {
	ID      string            `json:"id"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// Dispatcher executes one logical request through the same pipeline as a
// direct HTTP call and returns what it wrote. An error means the request
// could not be executed at all.
type Dispatcher interface {
	Dispatch(ctx context.Context, method, url string, header http.Header, body []byte) (int, http.Header, []byte, error)
}

// Options configures an Engine
type Options struct {
	MaxRequests int

	// Concurrent dispatches requests of the same dependency wave in parallel.
	// Response order is unaffected.
	Concurrent bool
}

// Engine runs batches against a Dispatcher
type Engine struct {
	dispatcher Dispatcher
	opts       Options
}

func NewEngine(dispatcher Dispatcher, opts Options) *Engine {
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = DefaultMaxRequests
	}
	return &Engine{dispatcher: dispatcher, opts: opts}
}

// Plan validates the batch and returns the execution order as indexes into
// requests. It is what Execute runs, exposed for inspection.
func (e *Engine) Plan(requests []Request) ([]int, error) {
	index, err := validate(requests, e.opts.MaxRequests)
	if err != nil {
		return nil, err
	}
	order, _, err := topoOrder(requests, index)
	return order, err
}

// Execute validates and runs the batch. Structural errors (wrapping
// ErrInvalidBatch) abort before anything executes; failures of individual
// requests become their responses. Responses are in input order. If ctx ends
// mid-batch, no further request is dispatched and ctx's error is returned.
//
// inherited carries the caller's headers; its Authorization is forwarded to
// sub-requests that do not set their own.
func (e *Engine) Execute(ctx context.Context, requests []Request, inherited http.Header) ([]Response, error) {
	index, err := validate(requests, e.opts.MaxRequests)
	if err != nil {
		return nil, err
	}
	order, level, err := topoOrder(requests, index)
	if err != nil {
		return nil, err
	}

	logger.Debug("batch: executing %d requests: concurrent=%v", len(requests), e.opts.Concurrent)

	results := make([]*Response, len(requests))

	if e.opts.Concurrent {
		for _, wave := range waves(order, level) {
			res := newResolver(index, slices.Clone(results))
			g, gctx := errgroup.WithContext(ctx)
			for _, idx := range wave {
				g.Go(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					results[idx] = e.run(gctx, requests[idx], res, inherited)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return nil, fmt.Errorf("batch interrupted: %w", err)
			}
		}
	} else {
		res := newResolver(index, results)
		for _, idx := range order {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("batch interrupted: %w", err)
			}
			results[idx] = e.run(ctx, requests[idx], res, inherited)
		}
	}

	out := make([]Response, len(results))
	for i, r := range results {
		out[i] = *r
	}
	return out, nil
}

// run resolves and dispatches one request. It always returns a response.
func (e *Engine) run(ctx context.Context, req Request, res *resolver, inherited http.Header) *Response {
	if isBatchURL(req.URL) {
		return errorResponse(req.ID, http.StatusBadRequest, "invalidRequest", "nested $batch requests are not supported")
	}

	target, err := res.resolveURL(req.URL)
	if err != nil {
		return errorResponse(req.ID, http.StatusBadRequest, "invalidRequest", err.Error())
	}
	body, err := res.resolveBody(req.Body)
	if err != nil {
		return errorResponse(req.ID, http.StatusBadRequest, "invalidRequest", err.Error())
	}

	header := make(http.Header, len(req.Headers)+1)
	for k, v := range req.Headers {
		header.Set(k, v)
	}
	if header.Get("Authorization") == "" && inherited != nil {
		if auth := inherited.Get("Authorization"); auth != "" {
			header.Set("Authorization", auth)
		}
	}
	if len(body) > 0 && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}

	logger.Debug("batch: dispatching request: %s", req)
	status, respHeader, respBody, err := e.dispatcher.Dispatch(ctx, strings.ToUpper(req.Method), target, header, body)
	if err != nil {
		logger.Warn("batch: request failed: id=%s url=%s err=%v", req.ID, target, err)
		return errorResponse(req.ID, http.StatusInternalServerError, "generalException", err.Error())
	}

	return &Response{
		ID:      req.ID,
		Status:  status,
		Headers: flattenHeader(respHeader),
		Body:    jsonBody(respBody),
	}
}

func isBatchURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.TrimRight(u.Path, "/"), "/$batch") || u.Path == "$batch"
}

func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = strings.Join(v, ", ")
		}
	}
	return out
}

// jsonBody embeds a JSON body as-is and anything else as a JSON string
func jsonBody(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	encoded, _ := json.Marshal(string(body))
	return encoded
}

func errorResponse(id string, status int, code, message string) *Response {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	return &Response{
		ID:      id,
		Status:  status,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
}

// String is used in logs
func (r Request) String() string {
	return fmt.Sprintf("%s %s %s", r.ID, strings.ToUpper(r.Method), r.URL)
}
