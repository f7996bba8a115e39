// Package consent holds the wire shapes of the consent API. Explicit tagged
// records, validated at the boundary.
package consent

import "time"

// GrantRequest records consent for one or more capabilities of the
// destination application. Capability and Capabilities may not both be empty;
// validation covers every named capability before any grant is written.
type GrantRequest struct {
	UserID             string   `json:"user_id"`
	RequestingAppName  string   `json:"requesting_app_name"`
	DestinationAppName string   `json:"destination_app_name"`
	Capability         string   `json:"capability,omitempty"`
	Capabilities       []string `json:"capabilities,omitempty"`
}

// All returns the union of Capability and Capabilities.
func (r *GrantRequest) All() []string {
	out := make([]string, 0, len(r.Capabilities)+1)
	if r.Capability != "" {
		out = append(out, r.Capability)
	}
	out = append(out, r.Capabilities...)
	return out
}

// CheckRequest asks whether consent exists for each capability.
type CheckRequest struct {
	UserID             string   `json:"user_id"`
	RequestingAppName  string   `json:"requesting_app_name"`
	DestinationAppName string   `json:"destination_app_name"`
	Capabilities       []string `json:"capabilities"`
}

// CheckResponse reports per-capability grant status.
type CheckResponse struct {
	Granted    map[string]bool `json:"granted"`
	AllGranted bool            `json:"all_granted"`
}

// RevokeRequest identifies the grant tuple to delete. The user comes from
// the URL path and must match the caller's verified subject.
type RevokeRequest struct {
	RequestingAppName  string `json:"requesting_app_name"`
	DestinationAppName string `json:"destination_app_name"`
	Capability         string `json:"capability"`
}

// Grant is one consent grant on the wire.
type Grant struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	RequestingAppName  string    `json:"requesting_app_name"`
	DestinationAppName string    `json:"destination_app_name"`
	Capability         string    `json:"capability"`
	GrantedAt          time.Time `json:"granted_at"`
}

// MessageResponse is a simple confirmation payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// CountResponse reports how many records an operation affected.
type CountResponse struct {
	Count int `json:"count"`
}
