package upstream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

const (
	contentTypeJSON        = "application/json"
	contentTypeEventStream = "text/event-stream"
)

// HTTPTransport posts each message to an MCP server. The reply is either a
// JSON body or, when the server answers with an event stream, the first
// event carrying the matching response.
type HTTPTransport struct {
	baseURL *url.URL
	client  *http.Client
	headers map[string]string
	accept  string
}

// HTTPOption is a functional option for the HTTP transport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = client
	}
}

// WithHeaders adds static headers to every request.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(t *HTTPTransport) {
		for k, v := range headers {
			t.headers[k] = v
		}
	}
}

// NewHTTPTransport creates a transport for a JSON-answering endpoint.
func NewHTTPTransport(rawURL string, opts ...HTTPOption) (*HTTPTransport, error) {
	return newHTTPTransport(rawURL, contentTypeJSON+", "+contentTypeEventStream, opts)
}

// NewSSETransport creates a transport for an endpoint that streams replies
// as server-sent events.
func NewSSETransport(rawURL string, opts ...HTTPOption) (*HTTPTransport, error) {
	return newHTTPTransport(rawURL, contentTypeEventStream+", "+contentTypeJSON, opts)
}

func newHTTPTransport(rawURL, accept string, opts []HTTPOption) (*HTTPTransport, error) {
	if err := util.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	t := &HTTPTransport{
		baseURL: u,
		client:  &http.Client{},
		headers: make(map[string]string),
		accept:  accept,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Call posts body. A non-empty path is appended to the base URL.
func (t *HTTPTransport) Call(ctx context.Context, path string, body []byte) ([]byte, error) {
	id, err := messageID(body)
	if err != nil {
		return nil, err
	}

	target := t.baseURL
	if path != "" && path != "/" {
		target = t.baseURL.JoinPath(path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", t.accept)
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if rid := observability.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set(observability.HeaderRequestID, rid)
	}
	observability.InjectTraceContext(ctx, req)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == contentTypeEventStream {
		if id == nil {
			return nil, nil
		}
		return readEventStream(resp.Body, id)
	}

	data, err := util.ReadLimited(resp.Body, MaxResponseBodySize)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return data, nil
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// readEventStream returns the data of the first event whose message id
// equals id. Other events (notifications, progress) are skipped.
func readEventStream(r io.Reader, id []byte) ([]byte, error) {
	scanner := bufio.NewScanner(io.LimitReader(r, MaxResponseBodySize))
	scanner.Buffer(make([]byte, 0, 64<<10), MaxResponseBodySize)

	var data strings.Builder
	flush := func() ([]byte, bool) {
		if data.Len() == 0 {
			return nil, false
		}
		event := []byte(data.String())
		data.Reset()
		got, err := messageID(event)
		if err != nil || !bytes.Equal(got, id) {
			return nil, false
		}
		return event, true
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event, ok := flush(); ok {
				return event, nil
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event stream: %w", err)
	}
	if event, ok := flush(); ok {
		return event, nil
	}
	return nil, fmt.Errorf("event stream ended without a response")
}
