// Package store adapts the MySQL repositories to the evaluation pipeline's
// persistence boundary.
package store

import (
	"context"
	"errors"

	chrepo "agentbench/internal/challenge/repository"
	"agentbench/internal/eval"
	"agentbench/internal/submission/model"
	subrepo "agentbench/internal/submission/repository"
	userrepo "agentbench/internal/user/repository"
)

// RepositoryStore implements eval.Store over the submission, user and
// challenge repositories.
type RepositoryStore struct {
	submissions subrepo.SubmissionRepository
	users       userrepo.UserRepository
	challenges  chrepo.ChallengeRepository
}

// Config carries the repositories the store composes.
type Config struct {
	Submissions subrepo.SubmissionRepository
	Users       userrepo.UserRepository
	Challenges  chrepo.ChallengeRepository
}

// New creates a repository-backed evaluation store.
func New(cfg Config) (*RepositoryStore, error) {
	if cfg.Submissions == nil {
		return nil, errors.New("submissions repository is required")
	}
	if cfg.Users == nil {
		return nil, errors.New("users repository is required")
	}
	if cfg.Challenges == nil {
		return nil, errors.New("challenges repository is required")
	}
	return &RepositoryStore{
		submissions: cfg.Submissions,
		users:       cfg.Users,
		challenges:  cfg.Challenges,
	}, nil
}

func (s *RepositoryStore) GetStatus(ctx context.Context, submissionID int64) (model.Status, error) {
	return s.submissions.GetStatus(ctx, submissionID)
}

func (s *RepositoryStore) SetStatus(ctx context.Context, submissionID int64, status model.Status, logs string) error {
	return s.submissions.SetStatus(ctx, submissionID, status, logs)
}

func (s *RepositoryStore) SetJudged(ctx context.Context, submissionID int64, result eval.JudgedResult) error {
	return s.submissions.SetJudged(ctx, submissionID, result.Status, result.Score, result.Cost, result.Logs, result.Feedback)
}

func (s *RepositoryStore) CountSubmissions(ctx context.Context, userID int64) (int, error) {
	return s.submissions.CountByUser(ctx, userID)
}

func (s *RepositoryStore) GetUserBadges(ctx context.Context, userID int64) ([]string, error) {
	return s.users.GetBadges(ctx, userID)
}

func (s *RepositoryStore) SetUserBadges(ctx context.Context, userID int64, badges []string) error {
	return s.users.SetBadges(ctx, userID, badges)
}

// GetActiveChallenge maps the repository's not-found error to a nil
// challenge: no active season is a normal condition for the pipeline.
func (s *RepositoryStore) GetActiveChallenge(ctx context.Context) (*eval.Challenge, error) {
	challenge, err := s.challenges.GetActive(ctx)
	if err != nil {
		if errors.Is(err, chrepo.ErrChallengeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &eval.Challenge{
		SeasonName:  challenge.SeasonName,
		BadgeName:   challenge.BadgeName,
		TargetScore: challenge.TargetScore,
		TargetCost:  challenge.TargetCost,
	}, nil
}

var _ eval.Store = (*RepositoryStore)(nil)
