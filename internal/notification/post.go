package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const deliveryTimeout = 15 * time.Second

// StatusError is a non-2xx response from an alert endpoint.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.Code)
}

// poster POSTs JSON bodies and retries throttling, 5xx and transport
// failures. Other 4xx responses fail at once.
type poster struct {
	client  *http.Client
	backOff func() backoff.BackOff
}

func newPoster() poster {
	return poster{
		client: &http.Client{Timeout: 10 * time.Second},
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = deliveryTimeout
			return b
		},
	}
}

func (p poster) postJSON(ctx context.Context, endpoint, url string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%s: marshal: %w", endpoint, err))
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s: create request: %w", endpoint, err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("%s: send: %w", endpoint, err)
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		serr := &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return serr
		}
		return backoff.Permanent(serr)
	}
	return backoff.Retry(op, backoff.WithContext(p.backOff(), ctx))
}
