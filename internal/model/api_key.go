package model

import "time"

// APIKey authenticates management API callers. Only the sha256 hash of the
// key material is stored.
type APIKey struct {
	ID         string     `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	KeyPrefix  string     `db:"key_prefix" json:"key_prefix"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// AuditLog captures one mutating API request.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	APIKeyID   *string   `db:"api_key_id" json:"api_key_id,omitempty"`
	Method     string    `db:"method" json:"method"`
	Path       string    `db:"path" json:"path"`
	StatusCode int       `db:"status_code" json:"status_code"`
	RemoteAddr string    `db:"remote_addr" json:"remote_addr"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
