package auth

import "time"

// Role scopes what an API caller may do.
type Role string

const (
	// RoleAdmin may create accounts and trigger analyses.
	RoleAdmin Role = "admin"
	// RoleReviewer may trigger analyses and read results.
	RoleReviewer Role = "reviewer"
	// RoleService is for machine callers (schedulers, internal tooling).
	RoleService Role = "service"
)

// Account is a service account that may call the review API. Human end-user
// authentication lives in the consumer-facing platform, not here.
type Account struct {
	ID         string
	Name       string
	SecretHash string
	Role       Role
	CreatedAt  time.Time
}

// CreateAccountRequest contains account provisioning data supplied by admins.
type CreateAccountRequest struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
	Role   Role   `json:"role"`
}

// TokenRequest contains credentials exchanged for a bearer token.
type TokenRequest struct {
	AccountID string `json:"account_id"`
	Secret    string `json:"secret"`
}
