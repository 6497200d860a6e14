// Package elastic sends compiled requests to an Elasticsearch-compatible
// HTTP endpoint.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/searchkit/internal/db"
)

var _ db.Backend = (*Client)(nil)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 4 << 10

// Client talks to a set of hosts in round-robin order.
type Client struct {
	hosts []string
	http  *http.Client
	next  atomic.Uint64
}

// New creates a client for settings. Hosts without a scheme use http.
func New(s db.Settings) (*Client, error) {
	if len(s.Hosts) == 0 {
		return nil, db.ErrNoHosts
	}
	hosts := make([]string, len(s.Hosts))
	for i, h := range s.Hosts {
		if !strings.Contains(h, "://") {
			h = "http://" + h
		}
		hosts[i] = strings.TrimRight(h, "/")
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{hosts: hosts, http: &http.Client{Timeout: timeout}}, nil
}

// Factory adapts New to db.Factory.
func Factory(s db.Settings) (db.Backend, error) {
	return New(s)
}

// Search posts doc to /{indexes}/{doctypes}/_search.
func (c *Client) Search(ctx context.Context, doc db.Document, indexes, doctypes []string) (*db.Response, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("encode request: %w", err)}
	}

	endpoint := c.host() + searchPath(indexes, doctypes)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := c.do(req)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	resp, err := db.DecodeResponse(data)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return resp, nil
}

// Ping requests the root endpoint of the next host.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host()+"/", http.NoBody)
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	if _, err := c.do(req); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", db.ErrIndexNotFound, err)
		}
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func (c *Client) host() string {
	n := c.next.Add(1) - 1
	return c.hosts[n%uint64(len(c.hosts))]
}

func searchPath(indexes, doctypes []string) string {
	var b strings.Builder
	switch {
	case len(indexes) > 0:
		b.WriteString("/" + joinEscaped(indexes))
	case len(doctypes) > 0:
		b.WriteString("/_all")
	}
	if len(doctypes) > 0 {
		b.WriteString("/" + joinEscaped(doctypes))
	}
	b.WriteString("/_search")
	return b.String()
}

func joinEscaped(parts []string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.Join(escaped, ",")
}
