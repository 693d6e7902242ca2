package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	benchmodel "agentbench/internal/benchmark/model"
	benchrepo "agentbench/internal/benchmark/repository"
	"agentbench/internal/common/cache"
	"agentbench/internal/common/db"
	"agentbench/internal/eval"
	"agentbench/internal/submission/model"
	"agentbench/internal/submission/repository"
	usermodel "agentbench/internal/user/model"
	userrepo "agentbench/internal/user/repository"
	appErr "agentbench/pkg/errors"
	"agentbench/pkg/utils/logger"
)

const (
	maxAgentNameLength = 255
	maxSourceURLLength = 2048
	defaultLeaderboard = 20
	maxLeaderboard     = 100

	submitRateKeyPrefix   = "submit:rate:"
	defaultSubmitInterval = 10 * time.Second
)

// maliciousPatterns are rejected anywhere in the source URL or agent name.
var maliciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-rf`),
	regexp.MustCompile(`eval\s*\(`),
	regexp.MustCompile(`exec\s*\(`),
	regexp.MustCompile(`os\.system`),
	regexp.MustCompile(`__proto__`),
}

// Enqueuer hands accepted submissions to the evaluation pipeline.
type Enqueuer interface {
	Enqueue(job eval.Job) error
}

// CreateRequest is the payload for a new submission.
type CreateRequest struct {
	BenchmarkID    int64  `json:"benchmark_id" binding:"required"`
	AgentName      string `json:"agent_name" binding:"required"`
	SubmissionType string `json:"submission_type" binding:"required"`
	SourceURL      string `json:"source_url" binding:"required"`
}

// Detail is a submission together with its version history.
type Detail struct {
	Submission *model.Submission   `json:"submission"`
	History    []*model.Submission `json:"history"`
}

// SubmissionService owns the submission intake rules: validation, the
// malicious payload scan, credit accounting and version chaining. Accepted
// submissions are enqueued for evaluation.
type SubmissionService struct {
	submissions    repository.SubmissionRepository
	benchmarks     benchrepo.BenchmarkRepository
	users          userrepo.UserRepository
	database       db.Database
	queue          Enqueuer
	cache          cache.Cache
	submitInterval time.Duration
}

// SubmissionServiceConfig holds the submission service dependencies.
type SubmissionServiceConfig struct {
	Submissions repository.SubmissionRepository
	Benchmarks  benchrepo.BenchmarkRepository
	Users       userrepo.UserRepository
	Database    db.Database
	Queue       Enqueuer

	// Cache backs the per-user submit rate limit. Optional; nil disables
	// rate limiting.
	Cache cache.Cache

	// SubmitInterval is the minimum gap between submissions per user.
	// Default: 10s.
	SubmitInterval time.Duration
}

// NewSubmissionService creates the submission service.
func NewSubmissionService(cfg SubmissionServiceConfig) (*SubmissionService, error) {
	if cfg.Submissions == nil {
		return nil, errors.New("submissions repository is required")
	}
	if cfg.Benchmarks == nil {
		return nil, errors.New("benchmarks repository is required")
	}
	if cfg.Users == nil {
		return nil, errors.New("users repository is required")
	}
	if cfg.Database == nil {
		return nil, errors.New("database is required")
	}
	if cfg.Queue == nil {
		return nil, errors.New("queue is required")
	}
	submitInterval := cfg.SubmitInterval
	if submitInterval <= 0 {
		submitInterval = defaultSubmitInterval
	}
	return &SubmissionService{
		submissions:    cfg.Submissions,
		benchmarks:     cfg.Benchmarks,
		users:          cfg.Users,
		database:       cfg.Database,
		queue:          cfg.Queue,
		cache:          cfg.Cache,
		submitInterval: submitInterval,
	}, nil
}

// Create validates and records a submission, deducts one credit and hands
// the job to the evaluation queue.
func (s *SubmissionService) Create(ctx context.Context, userID int64, req CreateRequest) (*model.Submission, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	if err := s.checkSubmitRate(ctx, userID); err != nil {
		return nil, err
	}

	benchmark, err := s.benchmarks.GetByID(ctx, req.BenchmarkID)
	if err != nil {
		if errors.Is(err, benchrepo.ErrBenchmarkNotFound) {
			return nil, appErr.New(appErr.BenchmarkNotFound)
		}
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	if benchmark.Status != benchmodel.StatusApproved {
		return nil, appErr.New(appErr.BenchmarkNotFound)
	}

	submission := &model.Submission{
		UserID:         userID,
		BenchmarkID:    req.BenchmarkID,
		Version:        1,
		AgentName:      strings.TrimSpace(req.AgentName),
		SubmissionType: req.SubmissionType,
		SourceURL:      strings.TrimSpace(req.SourceURL),
		Status:         model.StatusPending,
		Logs:           fmt.Sprintf("Submitted agent from %s. Waiting for evaluation engine...", strings.TrimSpace(req.SourceURL)),
	}

	err = s.database.Transaction(ctx, func(tx db.Transaction) error {
		if err := s.users.DeductCredit(ctx, tx, userID); err != nil {
			if errors.Is(err, userrepo.ErrInsufficientCredits) {
				return appErr.New(appErr.InsufficientCredits)
			}
			return appErr.Wrap(err, appErr.DatabaseError)
		}

		// Resubmitting under the same agent name extends its version chain.
		prev, err := s.submissions.LatestByAgentName(ctx, tx, userID, submission.AgentName)
		if err != nil && !errors.Is(err, repository.ErrSubmissionNotFound) {
			return appErr.Wrap(err, appErr.DatabaseError)
		}
		if prev != nil {
			submission.ParentID = &prev.ID
			submission.Version = prev.Version + 1
		}

		if err := s.submissions.Create(ctx, tx, submission); err != nil {
			return appErr.Wrap(err, appErr.DatabaseError)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(eval.Job{SubmissionID: submission.ID, UserID: userID}); err != nil {
		// The record stays Pending; the queue rejecting a duplicate or
		// being closed must not undo the accepted submission.
		logger.Warn(ctx, "failed to enqueue submission",
			zap.Int64("submission_id", submission.ID),
			zap.Error(err))
	}

	logger.Info(ctx, "submission created",
		zap.Int64("submission_id", submission.ID),
		zap.Int64("user_id", userID),
		zap.String("agent_name", submission.AgentName),
		zap.Int("version", submission.Version))
	return submission, nil
}

// Get returns a submission, restricted to its owner unless the caller is an
// admin.
func (s *SubmissionService) Get(ctx context.Context, callerID int64, callerRole string, id int64) (*Detail, error) {
	submission, err := s.submissions.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return nil, appErr.New(appErr.SubmissionNotFound)
		}
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	if submission.UserID != callerID && callerRole != usermodel.RoleAdmin {
		return nil, appErr.New(appErr.PermissionDenied)
	}

	history, err := s.submissions.ListVersions(ctx, submission.UserID, submission.AgentName)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	return &Detail{Submission: submission, History: history}, nil
}

// List returns the caller's submissions, newest first.
func (s *SubmissionService) List(ctx context.Context, userID int64, limit, offset int) ([]*model.Submission, error) {
	submissions, err := s.submissions.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	return submissions, nil
}

// GetStatus reads the live status of a submission.
func (s *SubmissionService) GetStatus(ctx context.Context, id int64) (model.Status, error) {
	status, err := s.submissions.GetStatus(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return "", appErr.New(appErr.SubmissionNotFound)
		}
		return "", appErr.Wrap(err, appErr.DatabaseError)
	}
	return status, nil
}

// Leaderboard ranks completed submissions by score.
func (s *SubmissionService) Leaderboard(ctx context.Context, industry, subdomain string, limit int) ([]repository.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboard
	}
	if limit > maxLeaderboard {
		limit = maxLeaderboard
	}
	entries, err := s.submissions.Leaderboard(ctx, industry, subdomain, limit)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	return entries, nil
}

// Flag marks a running or queued submission as malicious. Flagged is
// terminal: the evaluation pipeline discards any in-flight result for it.
func (s *SubmissionService) Flag(ctx context.Context, id int64) error {
	status, err := s.submissions.GetStatus(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return appErr.New(appErr.SubmissionNotFound)
		}
		return appErr.Wrap(err, appErr.DatabaseError)
	}
	if status.Terminal() {
		return appErr.Newf(appErr.FlagFailed, "submission is already %s", status)
	}

	if err := s.submissions.SetStatus(ctx, id, model.StatusFlagged, "Flagged by admin for malicious activity."); err != nil {
		return appErr.Wrap(err, appErr.DatabaseError)
	}
	logger.Warn(ctx, "submission flagged", zap.Int64("submission_id", id))
	return nil
}

// checkSubmitRate enforces one submission per user per interval via an
// atomic SetNX marker. Cache failures do not block submissions.
func (s *SubmissionService) checkSubmitRate(ctx context.Context, userID int64) error {
	if s.cache == nil {
		return nil
	}
	key := fmt.Sprintf("%s%d", submitRateKeyPrefix, userID)
	ok, err := s.cache.SetNX(ctx, key, "1", s.submitInterval)
	if err != nil {
		logger.Warn(ctx, "submit rate limit check failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return nil
	}
	if !ok {
		return appErr.New(appErr.SubmitTooFrequently)
	}
	return nil
}

func validateCreate(req CreateRequest) error {
	agentName := strings.TrimSpace(req.AgentName)
	sourceURL := strings.TrimSpace(req.SourceURL)

	if req.BenchmarkID <= 0 {
		return appErr.ValidationError("benchmark_id", "must be a positive id")
	}
	if agentName == "" {
		return appErr.ValidationError("agent_name", "must not be empty")
	}
	if len(agentName) > maxAgentNameLength {
		return appErr.Newf(appErr.PayloadTooLarge, "agent_name exceeds %d characters", maxAgentNameLength)
	}
	if sourceURL == "" {
		return appErr.ValidationError("source_url", "must not be empty")
	}
	if len(sourceURL) > maxSourceURLLength {
		return appErr.Newf(appErr.PayloadTooLarge, "source_url exceeds %d characters", maxSourceURLLength)
	}

	switch req.SubmissionType {
	case model.TypeDocker, model.TypeGitHub, model.TypeArchive:
	default:
		return appErr.ValidationError("submission_type", "must be one of docker, github, archive")
	}

	for _, pattern := range maliciousPatterns {
		if pattern.MatchString(sourceURL) || pattern.MatchString(agentName) {
			return appErr.New(appErr.MaliciousPayload)
		}
	}
	return nil
}

// statusPollInterval paces the websocket watch loop.
const statusPollInterval = 500 * time.Millisecond

// WatchStatus polls a submission until it reaches a terminal state, invoking
// send for every observed change. It returns when the status is terminal,
// send fails, or the context is done.
func (s *SubmissionService) WatchStatus(ctx context.Context, id int64, send func(status model.Status) error) error {
	var last model.Status
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		status, err := s.GetStatus(ctx, id)
		if err != nil {
			return err
		}
		if status != last {
			if err := send(status); err != nil {
				return err
			}
			last = status
		}
		if status.Terminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
