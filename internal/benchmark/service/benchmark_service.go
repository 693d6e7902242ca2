package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"agentbench/internal/benchmark/model"
	"agentbench/internal/benchmark/repository"
	appErr "agentbench/pkg/errors"
	"agentbench/pkg/utils/logger"
)

// ProposeRequest is the payload for a community benchmark proposal.
type ProposeRequest struct {
	Industry    string `json:"industry" binding:"required"`
	Subdomain   string `json:"subdomain" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// BenchmarkService handles the benchmark catalogue and its review flow.
// Proposals enter as pending and only become submittable once approved.
type BenchmarkService struct {
	benchmarks repository.BenchmarkRepository
}

// NewBenchmarkService creates the benchmark service.
func NewBenchmarkService(benchmarks repository.BenchmarkRepository) (*BenchmarkService, error) {
	if benchmarks == nil {
		return nil, errors.New("benchmarks repository is required")
	}
	return &BenchmarkService{benchmarks: benchmarks}, nil
}

// List returns approved benchmarks, optionally filtered by industry and
// subdomain.
func (s *BenchmarkService) List(ctx context.Context, industry, subdomain string) ([]*model.Benchmark, error) {
	benchmarks, err := s.benchmarks.ListApproved(ctx, industry, subdomain)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	return benchmarks, nil
}

// Get returns a single benchmark.
func (s *BenchmarkService) Get(ctx context.Context, id int64) (*model.Benchmark, error) {
	benchmark, err := s.benchmarks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBenchmarkNotFound) {
			return nil, appErr.New(appErr.BenchmarkNotFound)
		}
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	return benchmark, nil
}

// Propose files a benchmark for review.
func (s *BenchmarkService) Propose(ctx context.Context, authorID int64, req ProposeRequest) (*model.Benchmark, error) {
	industry := strings.TrimSpace(req.Industry)
	subdomain := strings.TrimSpace(req.Subdomain)
	name := strings.TrimSpace(req.Name)
	if industry == "" {
		return nil, appErr.ValidationError("industry", "must not be empty")
	}
	if subdomain == "" {
		return nil, appErr.ValidationError("subdomain", "must not be empty")
	}
	if name == "" {
		return nil, appErr.ValidationError("name", "must not be empty")
	}

	benchmark := &model.Benchmark{
		Industry:    industry,
		Subdomain:   subdomain,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Status:      model.StatusPending,
		AuthorID:    &authorID,
	}
	if err := s.benchmarks.Create(ctx, benchmark); err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}

	logger.Info(ctx, "benchmark proposed",
		zap.Int64("benchmark_id", benchmark.ID),
		zap.Int64("author_id", authorID),
		zap.String("name", benchmark.Name))
	return benchmark, nil
}

// ListPending returns proposals awaiting review.
func (s *BenchmarkService) ListPending(ctx context.Context) ([]*model.Benchmark, error) {
	benchmarks, err := s.benchmarks.ListPending(ctx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	return benchmarks, nil
}

// Review approves or rejects a pending proposal.
func (s *BenchmarkService) Review(ctx context.Context, id int64, approve bool) error {
	status := model.StatusRejected
	if approve {
		status = model.StatusApproved
	}
	if err := s.benchmarks.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrBenchmarkNotFound) {
			return appErr.New(appErr.BenchmarkNotFound)
		}
		return appErr.Wrap(err, appErr.DatabaseError)
	}
	logger.Info(ctx, "benchmark reviewed",
		zap.Int64("benchmark_id", id),
		zap.String("status", status))
	return nil
}
