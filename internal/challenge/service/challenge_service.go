package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"agentbench/internal/challenge/model"
	"agentbench/internal/challenge/repository"
	appErr "agentbench/pkg/errors"
	"agentbench/pkg/utils/logger"
)

// ResetRequest describes the new season installed by a challenge reset.
type ResetRequest struct {
	SeasonName  string  `json:"season_name" binding:"required"`
	Description string  `json:"description"`
	BadgeName   string  `json:"badge_name" binding:"required"`
	TargetScore float64 `json:"target_score" binding:"required"`
	TargetCost  float64 `json:"target_cost" binding:"required"`
}

// ChallengeService exposes the seasonal challenge. Completed submissions
// that meet both targets of the active season earn its badge.
type ChallengeService struct {
	challenges repository.ChallengeRepository
}

// NewChallengeService creates the challenge service.
func NewChallengeService(challenges repository.ChallengeRepository) (*ChallengeService, error) {
	if challenges == nil {
		return nil, errors.New("challenges repository is required")
	}
	return &ChallengeService{challenges: challenges}, nil
}

// GetActive returns the active season.
func (s *ChallengeService) GetActive(ctx context.Context) (*model.Challenge, error) {
	challenge, err := s.challenges.GetActive(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return nil, appErr.New(appErr.ChallengeNotFound)
		}
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	return challenge, nil
}

// Reset retires the current season and installs a new one.
func (s *ChallengeService) Reset(ctx context.Context, req ResetRequest) (*model.Challenge, error) {
	seasonName := strings.TrimSpace(req.SeasonName)
	badgeName := strings.TrimSpace(req.BadgeName)
	if seasonName == "" {
		return nil, appErr.ValidationError("season_name", "must not be empty")
	}
	if badgeName == "" {
		return nil, appErr.ValidationError("badge_name", "must not be empty")
	}
	if req.TargetScore <= 0 || req.TargetScore > 100 {
		return nil, appErr.ValidationError("target_score", "must be in (0, 100]")
	}
	if req.TargetCost <= 0 {
		return nil, appErr.ValidationError("target_cost", "must be positive")
	}

	challenge := &model.Challenge{
		SeasonName:  seasonName,
		Description: strings.TrimSpace(req.Description),
		BadgeName:   badgeName,
		TargetScore: req.TargetScore,
		TargetCost:  req.TargetCost,
	}
	if err := s.challenges.Reset(ctx, challenge); err != nil {
		return nil, appErr.Wrap(err, appErr.ChallengeResetFailed)
	}

	logger.Info(ctx, "challenge season reset",
		zap.Int64("challenge_id", challenge.ID),
		zap.String("season_name", challenge.SeasonName),
		zap.String("badge_name", challenge.BadgeName))
	return challenge, nil
}
