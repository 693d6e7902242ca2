package model

import "time"

// Roles known to the platform.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a platform account. Badges are stored in insertion order and a
// badge, once granted, is never revoked.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Credits      int       `json:"credits"`
	Badges       []string  `json:"badges"`
	CreatedAt    time.Time `json:"created_at"`
}

// APIKey is an alternative bearer credential for CLI/CI use. Only the hash
// of the key material is stored.
type APIKey struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	KeyHash   string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
