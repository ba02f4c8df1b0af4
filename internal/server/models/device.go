package models

import "time"

// Device is a scanner trusted through a static API key. Only the key's
// digest is stored.
type Device struct {
	ID           string    `json:"device_id"`
	APIKeyHash   string    `json:"-"`
	Active       bool      `json:"is_active"`
	RegisteredBy string    `json:"registered_by"`
	CreatedAt    time.Time `json:"created_at"`
}
