package model

import "time"

// Challenge is a seasonal event. At most one challenge is active at a time;
// completed submissions that meet both targets earn the challenge badge.
type Challenge struct {
	ID          int64     `json:"id"`
	SeasonName  string    `json:"season_name"`
	Description string    `json:"description"`
	BadgeName   string    `json:"badge_name"`
	TargetScore float64   `json:"target_score"`
	TargetCost  float64   `json:"target_cost"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}
