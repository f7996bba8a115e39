package handshake

import (
	"errors"
	"time"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
)

// ErrInvalidCallback covers every bad callback: missing, unrecognized,
// expired, or already consumed state. One error on purpose; the callback
// response must not reveal which case it was.
var ErrInvalidCallback = errors.New("invalid_callback")

// Challenge is returned to the caller when a consent detour is required. The
// State value appears here exactly once; afterwards only its hash exists
// server-side.
type Challenge struct {
	State       string                  `json:"state"`
	Tuple       repository.ConsentTuple `json:"-"`
	ConsentURL  string                  `json:"consent_ui_url"`
	CallbackURL string                  `json:"callback_url"`
	ExpiresAt   time.Time               `json:"expires_at"`
}

// record is the server-held challenge state bridging the redirect round trip.
// The identity tuple, the caller's token, and the action to retry are all
// recovered from here at callback time, never from callback parameters.
type record struct {
	UserID             string    `json:"user_id"`
	RequestingAppName  string    `json:"requesting_app_name"`
	DestinationAppName string    `json:"destination_app_name"`
	Capability         string    `json:"capability"`
	BearerToken        string    `json:"bearer_token"`
	ActionURL          string    `json:"action_url"`
	IssuedAt           time.Time `json:"issued_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

func (r *record) tuple() repository.ConsentTuple {
	return repository.ConsentTuple{
		UserID:             r.UserID,
		RequestingAppName:  r.RequestingAppName,
		DestinationAppName: r.DestinationAppName,
		Capability:         r.Capability,
	}
}

// PendingInfo is the peek view served to the consent UI while the challenge
// is still live. It never includes the bearer token.
type PendingInfo struct {
	RequestingAppName  string    `json:"requesting_app_name"`
	DestinationAppName string    `json:"destination_app_name"`
	Capability         string    `json:"capability"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// RetryResult describes the single post-consent re-invocation of the
// original action.
type RetryResult struct {
	Dispatched bool   `json:"dispatched"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Outcome is the result of completing a handshake.
type Outcome struct {
	Granted bool                     `json:"granted"`
	Grant   *repository.ConsentGrant `json:"-"`
	Retry   *RetryResult             `json:"retry,omitempty"`
}
