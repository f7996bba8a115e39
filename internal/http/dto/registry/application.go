// Package registry holds the wire shapes of the application registry API.
package registry

import "time"

// CreateRequest registers a new application.
type CreateRequest struct {
	Name string `json:"name"`
}

// Application is a registry entry on the wire.
type Application struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Capabilities []string  `json:"capabilities"`
	CreatedAt    time.Time `json:"created_at"`
}

// CapabilityRequest adds or removes a capability.
type CapabilityRequest struct {
	Capability string `json:"capability"`
}
