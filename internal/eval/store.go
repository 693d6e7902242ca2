package eval

import (
	"context"

	"agentbench/internal/submission/model"
)

// Challenge is the active seasonal challenge as seen by the badge engine.
type Challenge struct {
	SeasonName  string
	BadgeName   string
	TargetScore float64
	TargetCost  float64
}

// JudgedResult is the tuple persisted against a submission after judging.
// Score and Cost are non-nil only for Completed outcomes.
type JudgedResult struct {
	Status   model.Status
	Score    *float64
	Cost     *float64
	Logs     string
	Feedback *model.Feedback
}

// Store is the persistence boundary the pipeline drives. Implementations
// compose the submission, user and challenge repositories.
type Store interface {
	// GetStatus reads the current submission status.
	GetStatus(ctx context.Context, submissionID int64) (model.Status, error)

	// SetStatus writes a status transition together with its log text.
	SetStatus(ctx context.Context, submissionID int64, status model.Status, logs string) error

	// SetJudged atomically persists the judged result tuple.
	SetJudged(ctx context.Context, submissionID int64, result JudgedResult) error

	// CountSubmissions returns the user's total number of submissions.
	CountSubmissions(ctx context.Context, userID int64) (int, error)

	// GetUserBadges returns the user's badge names in insertion order.
	GetUserBadges(ctx context.Context, userID int64) ([]string, error)

	// SetUserBadges replaces the user's badge set.
	SetUserBadges(ctx context.Context, userID int64, badges []string) error

	// GetActiveChallenge returns the active challenge, or nil if none.
	GetActiveChallenge(ctx context.Context) (*Challenge, error)
}
