package service

import (
	"context"
	"errors"

	subrepo "agentbench/internal/submission/repository"
	userrepo "agentbench/internal/user/repository"
	appErr "agentbench/pkg/errors"
)

// Stats is the platform overview shown on the admin dashboard.
type Stats struct {
	TotalUsers       int64   `json:"total_users"`
	TotalSubmissions int64   `json:"total_submissions"`
	ActiveJobs       int64   `json:"active_jobs"`
	QueueDepth       int     `json:"queue_depth"`
	TotalCost        float64 `json:"total_cost"`
}

// QueueInspector reports the live evaluation queue depth.
type QueueInspector interface {
	Depth() int
}

// AdminService aggregates platform statistics for operators.
type AdminService struct {
	submissions subrepo.SubmissionRepository
	users       userrepo.UserRepository
	queue       QueueInspector
}

// AdminServiceConfig holds the admin service dependencies.
type AdminServiceConfig struct {
	Submissions subrepo.SubmissionRepository
	Users       userrepo.UserRepository
	Queue       QueueInspector
}

// NewAdminService creates the admin service.
func NewAdminService(cfg AdminServiceConfig) (*AdminService, error) {
	if cfg.Submissions == nil {
		return nil, errors.New("submissions repository is required")
	}
	if cfg.Users == nil {
		return nil, errors.New("users repository is required")
	}
	if cfg.Queue == nil {
		return nil, errors.New("queue is required")
	}
	return &AdminService{
		submissions: cfg.Submissions,
		users:       cfg.Users,
		queue:       cfg.Queue,
	}, nil
}

// Stats collects the dashboard counters.
func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	submissions, err := s.submissions.CountAll(ctx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	active, err := s.submissions.CountActive(ctx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	cost, err := s.submissions.SumCost(ctx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}

	return &Stats{
		TotalUsers:       users,
		TotalSubmissions: submissions,
		ActiveJobs:       active,
		QueueDepth:       s.queue.Depth(),
		TotalCost:        cost,
	}, nil
}

// RecentJobs lists the latest submissions across all users.
func (s *AdminService) RecentJobs(ctx context.Context, limit int) ([]subrepo.JobRow, error) {
	if limit <= 0 {
		limit = 20
	}
	jobs, err := s.submissions.RecentJobs(ctx, limit)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	return jobs, nil
}
