package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

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
)

type fakeDatabase struct{}

func (fakeDatabase) Query(context.Context, string, ...interface{}) (db.Rows, error) {
	return nil, errors.New("not implemented")
}
func (fakeDatabase) QueryRow(context.Context, string, ...interface{}) db.Row { return nil }
func (fakeDatabase) Exec(context.Context, string, ...interface{}) (db.Result, error) {
	return nil, errors.New("not implemented")
}
func (fakeDatabase) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	return fn(fakeTransaction{})
}
func (fakeDatabase) BeginTx(context.Context, *db.TxOptions) (db.Transaction, error) {
	return fakeTransaction{}, nil
}
func (fakeDatabase) Ping(context.Context) error { return nil }
func (fakeDatabase) Close() error               { return nil }

type fakeTransaction struct{}

func (fakeTransaction) Query(context.Context, string, ...interface{}) (db.Rows, error) {
	return nil, errors.New("not implemented")
}
func (fakeTransaction) QueryRow(context.Context, string, ...interface{}) db.Row { return nil }
func (fakeTransaction) Exec(context.Context, string, ...interface{}) (db.Result, error) {
	return nil, errors.New("not implemented")
}
func (fakeTransaction) Commit() error   { return nil }
func (fakeTransaction) Rollback() error { return nil }

type stubSubmissionRepo struct {
	byID   map[int64]*model.Submission
	nextID int64
}

func newStubSubmissionRepo() *stubSubmissionRepo {
	return &stubSubmissionRepo{byID: map[int64]*model.Submission{}, nextID: 1}
}

func (s *stubSubmissionRepo) Create(_ context.Context, _ db.Transaction, submission *model.Submission) error {
	submission.ID = s.nextID
	s.nextID++
	copied := *submission
	s.byID[submission.ID] = &copied
	return nil
}

func (s *stubSubmissionRepo) GetByID(_ context.Context, _ db.Transaction, id int64) (*model.Submission, error) {
	submission, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	return submission, nil
}

func (s *stubSubmissionRepo) ListByUser(_ context.Context, userID int64, _, _ int) ([]*model.Submission, error) {
	var result []*model.Submission
	for _, sub := range s.byID {
		if sub.UserID == userID {
			result = append(result, sub)
		}
	}
	return result, nil
}

func (s *stubSubmissionRepo) CountByUser(_ context.Context, userID int64) (int, error) {
	n := 0
	for _, sub := range s.byID {
		if sub.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *stubSubmissionRepo) LatestByAgentName(_ context.Context, _ db.Transaction, userID int64, agentName string) (*model.Submission, error) {
	var latest *model.Submission
	for _, sub := range s.byID {
		if sub.UserID != userID || sub.AgentName != agentName {
			continue
		}
		if latest == nil || sub.Version > latest.Version {
			latest = sub
		}
	}
	if latest == nil {
		return nil, repository.ErrSubmissionNotFound
	}
	return latest, nil
}

func (s *stubSubmissionRepo) ListVersions(_ context.Context, userID int64, agentName string) ([]*model.Submission, error) {
	var result []*model.Submission
	for _, sub := range s.byID {
		if sub.UserID == userID && sub.AgentName == agentName {
			result = append(result, sub)
		}
	}
	return result, nil
}

func (s *stubSubmissionRepo) GetStatus(_ context.Context, id int64) (model.Status, error) {
	submission, ok := s.byID[id]
	if !ok {
		return "", repository.ErrSubmissionNotFound
	}
	return submission.Status, nil
}

func (s *stubSubmissionRepo) SetStatus(_ context.Context, id int64, status model.Status, logs string) error {
	submission, ok := s.byID[id]
	if !ok {
		return repository.ErrSubmissionNotFound
	}
	submission.Status = status
	submission.Logs = logs
	return nil
}

func (s *stubSubmissionRepo) SetJudged(_ context.Context, id int64, status model.Status, score, cost *float64, logs string, feedback *model.Feedback) error {
	submission, ok := s.byID[id]
	if !ok {
		return repository.ErrSubmissionNotFound
	}
	submission.Status = status
	submission.Score = score
	submission.Cost = cost
	submission.Logs = logs
	submission.Feedback = feedback
	return nil
}

func (s *stubSubmissionRepo) Leaderboard(context.Context, string, string, int) ([]repository.LeaderboardEntry, error) {
	return nil, nil
}
func (s *stubSubmissionRepo) RecentJobs(context.Context, int) ([]repository.JobRow, error) {
	return nil, nil
}
func (s *stubSubmissionRepo) CountAll(context.Context) (int64, error)    { return int64(len(s.byID)), nil }
func (s *stubSubmissionRepo) CountActive(context.Context) (int64, error) { return 0, nil }
func (s *stubSubmissionRepo) SumCost(context.Context) (float64, error)   { return 0, nil }

type stubBenchmarkRepo struct {
	byID map[int64]*benchmodel.Benchmark
}

func (s *stubBenchmarkRepo) Create(_ context.Context, b *benchmodel.Benchmark) error {
	s.byID[b.ID] = b
	return nil
}

func (s *stubBenchmarkRepo) GetByID(_ context.Context, id int64) (*benchmodel.Benchmark, error) {
	b, ok := s.byID[id]
	if !ok {
		return nil, benchrepo.ErrBenchmarkNotFound
	}
	return b, nil
}

func (s *stubBenchmarkRepo) ListApproved(context.Context, string, string) ([]*benchmodel.Benchmark, error) {
	return nil, nil
}
func (s *stubBenchmarkRepo) ListPending(context.Context) ([]*benchmodel.Benchmark, error) {
	return nil, nil
}
func (s *stubBenchmarkRepo) SetStatus(context.Context, int64, string) error { return nil }

type stubCreditRepo struct {
	credits map[int64]int
}

func (s *stubCreditRepo) Create(context.Context, *usermodel.User) error { return nil }
func (s *stubCreditRepo) GetByID(context.Context, int64) (*usermodel.User, error) {
	return nil, userrepo.ErrUserNotFound
}
func (s *stubCreditRepo) GetByEmail(context.Context, string) (*usermodel.User, error) {
	return nil, userrepo.ErrUserNotFound
}
func (s *stubCreditRepo) Count(context.Context) (int64, error) { return 0, nil }
func (s *stubCreditRepo) DeductCredit(_ context.Context, _ db.Transaction, userID int64) error {
	if s.credits[userID] <= 0 {
		return userrepo.ErrInsufficientCredits
	}
	s.credits[userID]--
	return nil
}
func (s *stubCreditRepo) GetBadges(context.Context, int64) ([]string, error) { return nil, nil }
func (s *stubCreditRepo) SetBadges(context.Context, int64, []string) error   { return nil }

type stubQueue struct {
	jobs       []eval.Job
	enqueueErr error
}

func (s *stubQueue) Enqueue(job eval.Job) error {
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.jobs = append(s.jobs, job)
	return nil
}

type submissionFixture struct {
	svc         *SubmissionService
	submissions *stubSubmissionRepo
	benchmarks  *stubBenchmarkRepo
	users       *stubCreditRepo
	queue       *stubQueue
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()

	submissions := newStubSubmissionRepo()
	benchmarks := &stubBenchmarkRepo{byID: map[int64]*benchmodel.Benchmark{
		1: {ID: 1, Industry: "finance", Subdomain: "trading", Name: "Market Agent", Status: benchmodel.StatusApproved},
		2: {ID: 2, Industry: "legal", Subdomain: "contracts", Name: "Pending Bench", Status: benchmodel.StatusPending},
	}}
	users := &stubCreditRepo{credits: map[int64]int{7: 10, 8: 0}}
	queue := &stubQueue{}

	svc, err := NewSubmissionService(SubmissionServiceConfig{
		Submissions: submissions,
		Benchmarks:  benchmarks,
		Users:       users,
		Database:    fakeDatabase{},
		Queue:       queue,
	})
	if err != nil {
		t.Fatalf("NewSubmissionService: %v", err)
	}
	return &submissionFixture{svc: svc, submissions: submissions, benchmarks: benchmarks, users: users, queue: queue}
}

func validCreateRequest() CreateRequest {
	return CreateRequest{
		BenchmarkID:    1,
		AgentName:      "Trader",
		SubmissionType: model.TypeGitHub,
		SourceURL:      "https://github.com/demo/trader",
	}
}

func TestCreateSubmissionRateLimited(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rateCache, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("NewRedisCacheWithClient: %v", err)
	}
	t.Cleanup(func() { _ = rateCache.Close() })

	submissions := newStubSubmissionRepo()
	benchmarks := &stubBenchmarkRepo{byID: map[int64]*benchmodel.Benchmark{
		1: {ID: 1, Industry: "finance", Subdomain: "trading", Name: "Market Agent", Status: benchmodel.StatusApproved},
	}}
	svc, err := NewSubmissionService(SubmissionServiceConfig{
		Submissions:    submissions,
		Benchmarks:     benchmarks,
		Users:          &stubCreditRepo{credits: map[int64]int{7: 10}},
		Database:       fakeDatabase{},
		Queue:          &stubQueue{},
		Cache:          rateCache,
		SubmitInterval: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewSubmissionService: %v", err)
	}
	ctx := context.Background()

	if _, err := svc.Create(ctx, 7, validCreateRequest()); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := svc.Create(ctx, 7, validCreateRequest()); !appErr.Is(err, appErr.SubmitTooFrequently) {
		t.Fatalf("expected SubmitTooFrequently, got %v", err)
	}

	// The marker expires; the user may submit again.
	mr.FastForward(11 * time.Second)
	if _, err := svc.Create(ctx, 7, validCreateRequest()); err != nil {
		t.Fatalf("Create after interval: %v", err)
	}
}

func TestCreateSubmissionHappyPath(t *testing.T) {
	t.Parallel()

	f := newSubmissionFixture(t)
	ctx := context.Background()

	submission, err := f.svc.Create(ctx, 7, validCreateRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if submission.Status != model.StatusPending {
		t.Fatalf("expected Pending, got %s", submission.Status)
	}
	if submission.Version != 1 || submission.ParentID != nil {
		t.Fatalf("expected fresh version chain, got version=%d parent=%v", submission.Version, submission.ParentID)
	}
	if !strings.Contains(submission.Logs, "Waiting for evaluation engine") {
		t.Fatalf("unexpected intake log: %q", submission.Logs)
	}
	if f.users.credits[7] != 9 {
		t.Fatalf("expected one credit deducted, got %d", f.users.credits[7])
	}
	if len(f.queue.jobs) != 1 || f.queue.jobs[0].SubmissionID != submission.ID {
		t.Fatalf("expected job enqueued for submission %d, got %+v", submission.ID, f.queue.jobs)
	}
}

func TestCreateSubmissionVersionChain(t *testing.T) {
	t.Parallel()

	f := newSubmissionFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, 7, validCreateRequest())
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	second, err := f.svc.Create(ctx, 7, validCreateRequest())
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if second.Version != 2 {
		t.Fatalf("expected version 2, got %d", second.Version)
	}
	if second.ParentID == nil || *second.ParentID != first.ID {
		t.Fatalf("expected parent %d, got %v", first.ID, second.ParentID)
	}
}

func TestCreateSubmissionMaliciousPayload(t *testing.T) {
	t.Parallel()

	f := newSubmissionFixture(t)
	ctx := context.Background()

	payloads := []string{
		"https://example.com/run?cmd=rm -rf /",
		"https://example.com/eval(code)",
		"https://example.com/eval (code)",
		"https://example.com/exec(payload)",
		"https://example.com/exec  (payload)",
		"https://example.com/os.system",
		"https://example.com/__proto__",
	}
	for _, url := range payloads {
		req := validCreateRequest()
		req.SourceURL = url
		if _, err := f.svc.Create(ctx, 7, req); !appErr.Is(err, appErr.MaliciousPayload) {
			t.Errorf("url %q: expected MaliciousPayload, got %v", url, err)
		}
	}
	if f.users.credits[7] != 10 {
		t.Fatalf("rejected submissions must not cost credits, got %d", f.users.credits[7])
	}
	if len(f.queue.jobs) != 0 {
		t.Fatalf("rejected submissions must not be enqueued")
	}
}

func TestCreateSubmissionValidation(t *testing.T) {
	t.Parallel()

	f := newSubmissionFixture(t)
	ctx := context.Background()

	tooLongURL := "https://example.com/" + strings.Repeat("a", 2048)
	cases := []struct {
		name   string
		mutate func(*CreateRequest)
		code   appErr.ErrorCode
	}{
		{"empty agent name", func(r *CreateRequest) { r.AgentName = "  " }, appErr.ValidationFailed},
		{"agent name too long", func(r *CreateRequest) { r.AgentName = strings.Repeat("x", 256) }, appErr.PayloadTooLarge},
		{"source url too long", func(r *CreateRequest) { r.SourceURL = tooLongURL }, appErr.PayloadTooLarge},
		{"bad type", func(r *CreateRequest) { r.SubmissionType = "ftp" }, appErr.ValidationFailed},
		{"unknown benchmark", func(r *CreateRequest) { r.BenchmarkID = 99 }, appErr.BenchmarkNotFound},
		{"unapproved benchmark", func(r *CreateRequest) { r.BenchmarkID = 2 }, appErr.BenchmarkNotFound},
	}
	for _, tc := range cases {
		req := validCreateRequest()
		tc.mutate(&req)
		if _, err := f.svc.Create(ctx, 7, req); !appErr.Is(err, tc.code) {
			t.Errorf("%s: expected code %d, got %v", tc.name, tc.code, err)
		}
	}
}

func TestCreateSubmissionInsufficientCredits(t *testing.T) {
	t.Parallel()

	f := newSubmissionFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, 8, validCreateRequest()); !appErr.Is(err, appErr.InsufficientCredits) {
		t.Fatalf("expected InsufficientCredits, got %v", err)
	}
}

func TestCreateSubmissionSurvivesEnqueueFailure(t *testing.T) {
	t.Parallel()

	f := newSubmissionFixture(t)
	f.queue.enqueueErr = appErr.New(appErr.DuplicateJob)
	ctx := context.Background()

	submission, err := f.svc.Create(ctx, 7, validCreateRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if submission.Status != model.StatusPending {
		t.Fatalf("expected Pending despite enqueue failure, got %s", submission.Status)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	t.Parallel()

	f := newSubmissionFixture(t)
	ctx := context.Background()

	submission, err := f.svc.Create(ctx, 7, validCreateRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Get(ctx, 99, usermodel.RoleUser, submission.ID); !appErr.Is(err, appErr.PermissionDenied) {
		t.Fatalf("expected PermissionDenied for other user, got %v", err)
	}
	if _, err := f.svc.Get(ctx, 99, usermodel.RoleAdmin, submission.ID); err != nil {
		t.Fatalf("admin should read any submission: %v", err)
	}
	detail, err := f.svc.Get(ctx, 7, usermodel.RoleUser, submission.ID)
	if err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if len(detail.History) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(detail.History))
	}
}

func TestFlagTerminalRules(t *testing.T) {
	t.Parallel()

	f := newSubmissionFixture(t)
	ctx := context.Background()

	submission, err := f.svc.Create(ctx, 7, validCreateRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := f.svc.Flag(ctx, submission.ID); err != nil {
		t.Fatalf("Flag: %v", err)
	}
	stored := f.submissions.byID[submission.ID]
	if stored.Status != model.StatusFlagged {
		t.Fatalf("expected Flagged, got %s", stored.Status)
	}
	if stored.Logs != "Flagged by admin for malicious activity." {
		t.Fatalf("unexpected flag log: %q", stored.Logs)
	}

	// Flagged is terminal: a second flag must fail.
	if err := f.svc.Flag(ctx, submission.ID); !appErr.Is(err, appErr.FlagFailed) {
		t.Fatalf("expected FlagFailed on terminal submission, got %v", err)
	}
	if err := f.svc.Flag(ctx, 12345); !appErr.Is(err, appErr.SubmissionNotFound) {
		t.Fatalf("expected SubmissionNotFound, got %v", err)
	}
}

func TestWatchStatusStopsAtTerminal(t *testing.T) {
	t.Parallel()

	f := newSubmissionFixture(t)
	ctx := context.Background()

	submission, err := f.svc.Create(ctx, 7, validCreateRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	score := 91.5
	cost := 0.2
	if err := f.submissions.SetJudged(ctx, submission.ID, model.StatusCompleted, &score, &cost, "done", nil); err != nil {
		t.Fatalf("SetJudged: %v", err)
	}

	var seen []model.Status
	err = f.svc.WatchStatus(ctx, submission.ID, func(status model.Status) error {
		seen = append(seen, status)
		return nil
	})
	if err != nil {
		t.Fatalf("WatchStatus: %v", err)
	}
	if len(seen) != 1 || seen[0] != model.StatusCompleted {
		t.Fatalf("expected single Completed event, got %v", seen)
	}
}

func TestWatchStatusPropagatesSendError(t *testing.T) {
	t.Parallel()

	f := newSubmissionFixture(t)
	ctx := context.Background()

	submission, err := f.svc.Create(ctx, 7, validCreateRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.submissions.SetStatus(ctx, submission.ID, model.StatusFailed, "boom"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	sendErr := fmt.Errorf("client gone")
	err = f.svc.WatchStatus(ctx, submission.ID, func(model.Status) error { return sendErr })
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected send error, got %v", err)
	}
}
