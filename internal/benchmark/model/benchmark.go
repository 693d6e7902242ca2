package model

import "time"

// Benchmark lifecycle states. Only approved benchmarks accept submissions
// and appear in listings.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Benchmark is an evaluation track, organised by industry and subdomain.
type Benchmark struct {
	ID          int64     `json:"id"`
	Industry    string    `json:"industry"`
	Subdomain   string    `json:"subdomain"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	AuthorID    *int64    `json:"author_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
