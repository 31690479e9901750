package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/Project-Sylos/Mirage/internal/batch"
)

// routePrefixes are served as-is; any other batch URL is relative to /v1.0
var routePrefixes = []string{"/v1.0/", "/upload/", "/emulator/", "/health"}

// Dispatcher runs batch sub-requests in process through an http.Handler
// and captures what the handler writes
type Dispatcher struct {
	handler    http.Handler
	host       string
	remoteAddr string
}

var _ batch.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher whose sub-requests look like they came
// from the same client as parent
func NewDispatcher(handler http.Handler, parent *http.Request) *Dispatcher {
	return &Dispatcher{handler: handler, host: parent.Host, remoteAddr: parent.RemoteAddr}
}

// route turns a batch URL into a request URI on this server
func route(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}
	if u.IsAbs() {
		target = u.RequestURI()
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	for _, prefix := range routePrefixes {
		if strings.HasPrefix(target, prefix) {
			return target, nil
		}
	}
	return "/v1.0" + target, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, method, target string, header http.Header, body []byte) (int, http.Header, []byte, error) {
	uri, err := route(target)
	if err != nil {
		return 0, nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header = header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Host = d.host
	req.RemoteAddr = d.remoteAddr

	rec := httptest.NewRecorder()
	d.handler.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	return res.StatusCode, res.Header, rec.Body.Bytes(), nil
}
