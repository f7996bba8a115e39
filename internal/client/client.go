// Package client is the HTTP client a resource server embeds to talk to a
// remote consent service. It satisfies both sides of the guard contract:
// the decision engine (consent check) and the challenge issuer.
package client

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

	"github.com/dropDatabas3/consentgate/internal/authz"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/guard"
	"github.com/dropDatabas3/consentgate/internal/handshake"
	dto "github.com/dropDatabas3/consentgate/internal/http/dto/consent"
)

const defaultTimeout = 10 * time.Second

// Client talks to the consent service API.
type Client struct {
	base string
	http *http.Client
}

// Option tunes the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client against baseURL (scheme://host[:port], no trailing
// path).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ authz.Engine = (*Client)(nil)
var _ guard.ChallengeIssuer = (*Client)(nil)

// Authorize asks the consent service whether the tuple is granted. The check
// runs with the caller's own bearer token, taken from the guard context, so
// the service can match user_id against the verified subject.
func (c *Client) Authorize(ctx context.Context, t repository.ConsentTuple) (*authz.Decision, error) {
	q := url.Values{}
	q.Set("user_id", t.UserID)
	q.Set("requesting_app_name", t.RequestingAppName)
	q.Set("destination_app_name", t.DestinationAppName)
	q.Set("capability", t.Capability)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/consent/check?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if tok := guard.BearerFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var check dto.CheckResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&check); err != nil {
		return nil, fmt.Errorf("decode check response: %w", err)
	}

	d := &authz.Decision{Tuple: t, Result: authz.ConsentRequired}
	if check.AllGranted {
		d.Result = authz.Allow
	}
	return d, nil
}

// Issue creates a consent challenge at the service. bearerToken names the
// user and is captured server-side for the post-consent retry of actionURL.
func (c *Client) Issue(ctx context.Context, t repository.ConsentTuple, bearerToken, actionURL string) (*handshake.Challenge, error) {
	body, err := json.Marshal(dto.ChallengeRequest{
		RequestingAppName:  t.RequestingAppName,
		DestinationAppName: t.DestinationAppName,
		Capability:         t.Capability,
		ActionURL:          actionURL,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/consent/challenge", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearerToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, c.apiError(resp)
	}

	var ch dto.ChallengeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&ch); err != nil {
		return nil, fmt.Errorf("decode challenge response: %w", err)
	}

	return &handshake.Challenge{
		State:       ch.State,
		Tuple:       t,
		ConsentURL:  ch.ConsentUIURL,
		CallbackURL: ch.CallbackURL,
		ExpiresAt:   ch.ExpiresAt,
	}, nil
}

// apiError maps an error payload back to the domain sentinels the guard
// understands.
func (c *Client) apiError(resp *http.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)

	switch body.Code {
	case "UNKNOWN_APPLICATION":
		return repository.ErrUnknownApplication
	case "UNKNOWN_CAPABILITY":
		return repository.ErrUnknownCapability
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: consent service answered %d", repository.ErrUnavailable, resp.StatusCode)
	}
	return fmt.Errorf("consent service answered %d (%s)", resp.StatusCode, body.Code)
}
