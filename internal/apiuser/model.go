// Package apiuser authenticates callers of the management API with opaque
// API keys. Only a bcrypt hash of the key is stored; the plaintext is shown
// once at creation.
package apiuser

import "time"

// User is one API credential.
type User struct {
	ID        string
	Name      string
	KeyPrefix string
	KeyHash   string
	Enabled   bool
	CreatedAt time.Time
}
