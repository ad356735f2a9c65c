package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vyrodovalexey/avamcp/internal/retry"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Shipper delivers a batch of entries.
type Shipper interface {
	Ship(ctx context.Context, batch []*Entry) error
}

// HTTPShipper posts batches as a JSON array to a collector.
type HTTPShipper struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewHTTPShipper creates a shipper for cfg.CollectorURL. A nil client uses
// one with cfg.Timeout.
func NewHTTPShipper(cfg Config, client *http.Client) *HTTPShipper {
	cfg = cfg.withDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &HTTPShipper{url: cfg.CollectorURL, headers: headers, client: client}
}

// Ship posts batch. Client errors other than 408 and 429 are permanent.
func (s *HTTPShipper) Ship(ctx context.Context, batch []*Entry) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return retry.Permanent(fmt.Errorf("encode audit batch: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(util.WrapError(util.KindAuditDeliveryFailed, "build audit request", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return util.WrapError(util.KindAuditDeliveryFailed, "send audit batch", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	statusErr := util.NewError(util.KindAuditDeliveryFailed,
		fmt.Sprintf("collector returned status %d", resp.StatusCode))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Permanent(statusErr)
	}
	return statusErr
}
