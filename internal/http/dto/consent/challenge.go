package consent

import "time"

// ChallengeRequest is sent by a resource guard when it needs a consent
// detour. The user identity comes from the caller's verified bearer token,
// never from the body. ActionURL is the blocked action captured for the
// post-consent retry.
type ChallengeRequest struct {
	RequestingAppName  string `json:"requesting_app_name"`
	DestinationAppName string `json:"destination_app_name"`
	Capability         string `json:"capability"`
	ActionURL          string `json:"action_url,omitempty"`
}

// ChallengeResponse carries the one-time state and the redirect target. This
// is the only response that ever contains the plaintext state.
type ChallengeResponse struct {
	State        string    `json:"state"`
	ConsentUIURL string    `json:"consent_ui_url"`
	CallbackURL  string    `json:"callback_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ChallengeInfoResponse is the peek view for the consent form.
type ChallengeInfoResponse struct {
	RequestingAppName  string    `json:"requesting_app_name"`
	DestinationAppName string    `json:"destination_app_name"`
	Capability         string    `json:"capability"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// CallbackRequest is the consent decision. Only granted and state; the
// identity tuple is recovered server-side from the state token.
type CallbackRequest struct {
	Granted string `json:"granted"`
	State   string `json:"state"`
}

// GrantedBool interprets the granted flag; anything but "true" is a denial.
func (r *CallbackRequest) GrantedBool() bool {
	return r.Granted == "true"
}

// CallbackResponse reports the handshake outcome, including the result of
// the single retry dispatch when consent was granted.
type CallbackResponse struct {
	Granted bool         `json:"granted"`
	Message string       `json:"message"`
	Retry   *RetryResult `json:"retry,omitempty"`
}

// RetryResult mirrors the retry dispatch outcome.
type RetryResult struct {
	Dispatched bool   `json:"dispatched"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
}
