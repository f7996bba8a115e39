package handshake

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Dispatcher re-invokes a blocked action after consent was granted.
type Dispatcher interface {
	Dispatch(ctx context.Context, actionURL, bearerToken string) (*RetryResult, error)
}

// HTTPDispatcher POSTs the captured action URL with the captured bearer
// token.
type HTTPDispatcher struct {
	client *http.Client
}

func NewHTTPDispatcher(timeout time.Duration) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDispatcher{client: &http.Client{Timeout: timeout}}
}

const maxRetryBody = 64 << 10

func (d *HTTPDispatcher) Dispatch(ctx context.Context, actionURL, bearerToken string) (*RetryResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, actionURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+bearerToken)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxRetryBody))
	return &RetryResult{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}, nil
}
