// Package rest implements the HTTP transport for the H2O REST API.
//
// The wire format is dictated by the remote server and treated as a fixed,
// unversioned contract: requests are plain GET/POST/DELETE calls against
// endpoint suffixes such as "ModelBuilders/gbm", responses are JSON. There is
// no retry logic; any non-2xx response or transport failure is returned to
// the caller immediately.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/letsflykite/h2o-dev/pkg/errors"
	"github.com/letsflykite/h2o-dev/pkg/log"
)

// errorBodyLimit bounds how much of a failed response is kept for the error message.
const errorBodyLimit = 512

// Connection is a handle to one H2O server. All calls are synchronous and
// block until the server responds; cancellation comes from the caller's
// context. A Connection is safe for use from multiple goroutines as long as
// the underlying http.Client is.
type Connection struct {
	scheme string
	host   string
	port   int
	client *http.Client
	logger log.Logger
}

// Option configures a Connection.
type Option func(*Connection)

// WithScheme sets the URL scheme. Default is "http".
func WithScheme(scheme string) Option {
	return func(c *Connection) {
		c.scheme = scheme
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connection) {
		c.client = client
	}
}

// WithTimeout sets the per-request timeout on the underlying HTTP client.
// Job polling issues many short requests, so this bounds a single round trip,
// not a whole fit.
func WithTimeout(d time.Duration) Option {
	return func(c *Connection) {
		c.client.Timeout = d
	}
}

// New creates a Connection to the server at host:port.
func New(host string, port int, opts ...Option) *Connection {
	c := &Connection{
		scheme: "http",
		host:   host,
		port:   port,
		client: &http.Client{},
		logger: log.GetLoggerWithName("rest"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Addr returns the server address this connection points at.
func (c *Connection) Addr() string {
	return fmt.Sprintf("%s://%s:%d", c.scheme, c.host, c.port)
}

// Get issues a GET request against the endpoint suffix and decodes the JSON
// response into out when out is non-nil.
func (c *Connection) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, "", nil, out)
}

// Post issues a POST request with an optional JSON body.
func (c *Connection) Post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrapf(err, "encoding request body for %s", path)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, http.MethodPost, path, nil, contentType, body, out)
}

// PostForm issues a POST request with a url-encoded form body. The
// ModelBuilders submission and Rapids endpoints take their parameters this
// way.
func (c *Connection) PostForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	body := strings.NewReader(form.Encode())
	return c.do(ctx, http.MethodPost, path, nil, "application/x-www-form-urlencoded", body, out)
}

// Delete issues a DELETE request. Used by the remove-by-key cleanup call.
func (c *Connection) Delete(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodDelete, path, query, "", nil, out)
}

func (c *Connection) do(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader, out interface{}) error {
	fullURL := c.Addr() + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return errors.Wrapf(err, "building %s %s", method, path)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	started := time.Now()
	res, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer res.Body.Close()

	c.logger.Debug("request completed",
		log.MethodKey, method,
		log.PathKey, path,
		log.StatusCodeKey, res.StatusCode,
		log.DurationMsKey, time.Since(started).Milliseconds(),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, errorBodyLimit))
		return errors.NewRESTError(method, path, res.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}

	if ct := res.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return errors.Newf("h2o: expected json response from %s, got: %v", path, ct)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding response from %s %s", method, path)
	}
	return nil
}
