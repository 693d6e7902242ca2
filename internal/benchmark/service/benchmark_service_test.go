package service

import (
	"context"
	"testing"

	"agentbench/internal/benchmark/model"
	"agentbench/internal/benchmark/repository"
	appErr "agentbench/pkg/errors"
)

type stubBenchmarkRepo struct {
	byID   map[int64]*model.Benchmark
	nextID int64
}

func newStubBenchmarkRepo() *stubBenchmarkRepo {
	return &stubBenchmarkRepo{byID: map[int64]*model.Benchmark{}, nextID: 1}
}

func (s *stubBenchmarkRepo) Create(_ context.Context, b *model.Benchmark) error {
	b.ID = s.nextID
	s.nextID++
	s.byID[b.ID] = b
	return nil
}

func (s *stubBenchmarkRepo) GetByID(_ context.Context, id int64) (*model.Benchmark, error) {
	b, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrBenchmarkNotFound
	}
	return b, nil
}

func (s *stubBenchmarkRepo) ListApproved(_ context.Context, industry, subdomain string) ([]*model.Benchmark, error) {
	var result []*model.Benchmark
	for _, b := range s.byID {
		if b.Status != model.StatusApproved {
			continue
		}
		if industry != "" && b.Industry != industry {
			continue
		}
		if subdomain != "" && b.Subdomain != subdomain {
			continue
		}
		result = append(result, b)
	}
	return result, nil
}

func (s *stubBenchmarkRepo) ListPending(context.Context) ([]*model.Benchmark, error) {
	var result []*model.Benchmark
	for _, b := range s.byID {
		if b.Status == model.StatusPending {
			result = append(result, b)
		}
	}
	return result, nil
}

func (s *stubBenchmarkRepo) SetStatus(_ context.Context, id int64, status string) error {
	b, ok := s.byID[id]
	if !ok {
		return repository.ErrBenchmarkNotFound
	}
	b.Status = status
	return nil
}

func TestProposeAndReview(t *testing.T) {
	t.Parallel()

	repo := newStubBenchmarkRepo()
	svc, err := NewBenchmarkService(repo)
	if err != nil {
		t.Fatalf("NewBenchmarkService: %v", err)
	}
	ctx := context.Background()

	benchmark, err := svc.Propose(ctx, 7, ProposeRequest{
		Industry:  "finance",
		Subdomain: "trading",
		Name:      "Market Agent",
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if benchmark.Status != model.StatusPending {
		t.Fatalf("proposals must start pending, got %s", benchmark.Status)
	}
	if benchmark.AuthorID == nil || *benchmark.AuthorID != 7 {
		t.Fatalf("expected author 7, got %v", benchmark.AuthorID)
	}

	// Pending proposals are invisible to the public listing.
	listed, err := svc.List(ctx, "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty listing before approval, got %d", len(listed))
	}

	if err := svc.Review(ctx, benchmark.ID, true); err != nil {
		t.Fatalf("Review approve: %v", err)
	}
	listed, err = svc.List(ctx, "finance", "trading")
	if err != nil {
		t.Fatalf("List after approval: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 approved benchmark, got %d", len(listed))
	}

	if err := svc.Review(ctx, 999, false); !appErr.Is(err, appErr.BenchmarkNotFound) {
		t.Fatalf("expected BenchmarkNotFound, got %v", err)
	}
}

func TestProposeValidation(t *testing.T) {
	t.Parallel()

	svc, err := NewBenchmarkService(newStubBenchmarkRepo())
	if err != nil {
		t.Fatalf("NewBenchmarkService: %v", err)
	}
	ctx := context.Background()

	cases := []ProposeRequest{
		{Industry: "", Subdomain: "x", Name: "y"},
		{Industry: "x", Subdomain: "", Name: "y"},
		{Industry: "x", Subdomain: "y", Name: "  "},
	}
	for i, req := range cases {
		if _, err := svc.Propose(ctx, 1, req); !appErr.Is(err, appErr.ValidationFailed) {
			t.Errorf("case %d: expected ValidationFailed, got %v", i, err)
		}
	}
}
