package eval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"agentbench/internal/submission/model"
	appErr "agentbench/pkg/errors"
	"agentbench/pkg/utils/logger"

	"go.uber.org/zap"
)

const runningLog = "Container started. Pulling image and mounting sandbox..."

// Job identifies one queued evaluation. Jobs are ephemeral and owned
// exclusively by the queue.
type Job struct {
	SubmissionID int64
	UserID       int64
}

// QueueConfig holds queue dependencies and settings.
type QueueConfig struct {
	Store    Store
	Executor Executor
	Judge    *Judge
	Badges   *BadgeEngine

	// Deadline is the hard wall-clock limit per execution. Default: 5s.
	Deadline time.Duration

	// StoreTimeout bounds each individual store call. Default: 3s.
	StoreTimeout time.Duration
}

// Queue is a strictly-ordered, single-concurrency evaluation scheduler.
// Jobs run in FIFO order with exactly one in flight at any instant; each run
// is bounded by the configured deadline. Enqueue is safe for concurrent
// producers and never blocks.
type Queue struct {
	store        Store
	executor     Executor
	judge        *Judge
	badges       *BadgeEngine
	deadline     time.Duration
	storeTimeout time.Duration

	mu      sync.Mutex
	jobs    []Job
	tracked map[int64]struct{} // queued or in-flight submission ids
	started bool
	closed  bool

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueue creates an evaluation queue.
func NewQueue(cfg QueueConfig) (*Queue, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Judge == nil {
		return nil, fmt.Errorf("judge is required")
	}
	if cfg.Badges == nil {
		return nil, fmt.Errorf("badge engine is required")
	}
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	storeTimeout := cfg.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = 3 * time.Second
	}
	return &Queue{
		store:        cfg.Store,
		executor:     cfg.Executor,
		judge:        cfg.Judge,
		badges:       cfg.Badges,
		deadline:     deadline,
		storeTimeout: storeTimeout,
		tracked:      make(map[int64]struct{}),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}, nil
}

// Start launches the scheduling loop. It must be called exactly once.
func (q *Queue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return fmt.Errorf("queue already started")
	}
	if q.closed {
		return appErr.New(appErr.EvaluationQueueClosed)
	}
	q.started = true

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	go q.run(ctx)
	return nil
}

// Stop shuts the queue down. Queued jobs are dropped and an in-flight
// execution is abandoned via context cancellation; its submission keeps
// whatever status was last persisted.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	started := q.started
	cancel := q.cancel
	q.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-q.done
}

// Enqueue appends a job to the tail of the queue. It never blocks.
// A submission id that is already queued or in flight is rejected.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return appErr.New(appErr.EvaluationQueueClosed)
	}
	if _, dup := q.tracked[job.SubmissionID]; dup {
		q.mu.Unlock()
		return appErr.Newf(appErr.DuplicateJob, "submission %d is already queued", job.SubmissionID)
	}
	q.tracked[job.SubmissionID] = struct{}{}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Depth returns the number of queued jobs, excluding the one in flight.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		job, ok := q.next(ctx)
		if !ok {
			return
		}
		q.process(ctx, job)
		q.release(job.SubmissionID)
	}
}

func (q *Queue) next(ctx context.Context) (Job, bool) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return job, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Job{}, false
		case <-q.wake:
		}
	}
}

func (q *Queue) release(submissionID int64) {
	q.mu.Lock()
	delete(q.tracked, submissionID)
	q.mu.Unlock()
}

// process drives one job through the per-job protocol. A job's failure never
// halts the loop; persistence errors are logged and abandon this job only.
func (q *Queue) process(ctx context.Context, job Job) {
	fields := []zap.Field{
		zap.Int64("submission_id", job.SubmissionID),
		zap.Int64("user_id", job.UserID),
	}

	if err := q.setStatus(ctx, job.SubmissionID, model.StatusRunning, runningLog); err != nil {
		logger.Error(ctx, "mark submission running failed", append(fields, zap.Error(err))...)
		return
	}

	runCtx, cancelRun := context.WithTimeout(ctx, q.deadline)
	defer cancelRun()

	type execResult struct {
		outcome Outcome
		err     error
	}
	resCh := make(chan execResult, 1)
	go func() {
		outcome, err := q.executor.Run(runCtx, job.SubmissionID)
		resCh <- execResult{outcome: outcome, err: err}
	}()

	var outcome Outcome
	select {
	case <-runCtx.Done():
		if ctx.Err() != nil {
			logger.Warn(ctx, "queue stopping, abandoning in-flight job", fields...)
			return
		}
		// Deadline fired first. Cancelling runCtx tears the executor down
		// best-effort; the failure is recorded without waiting for teardown.
		q.failTimeout(ctx, job, fields)
		return
	case res := <-resCh:
		cancelRun()
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
				q.failTimeout(ctx, job, fields)
				return
			}
			if errors.Is(res.err, context.Canceled) && ctx.Err() != nil {
				logger.Warn(ctx, "queue stopping, abandoning in-flight job", fields...)
				return
			}
			// Executor failure is a first-class judged outcome.
			outcome = Outcome{Success: false, Output: res.err.Error()}
		} else {
			outcome = res.outcome
		}
	}

	// An admin may have flagged the submission while it was executing.
	// The flag is terminal and wins the race against the judge.
	status, err := q.getStatus(ctx, job.SubmissionID)
	if err != nil {
		logger.Error(ctx, "read submission status failed, abandoning job", append(fields, zap.Error(err))...)
		return
	}
	if status == model.StatusFlagged {
		logger.Warn(ctx, "submission flagged during evaluation, judged outcome discarded", fields...)
		return
	}

	result := q.judge.Evaluate(outcome)
	if err := q.setJudged(ctx, job.SubmissionID, result); err != nil {
		logger.Error(ctx, "persist judged result failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Info(ctx, "submission judged", append(fields, zap.String("status", string(result.Status)))...)

	if result.Status == model.StatusCompleted && result.Score != nil && result.Cost != nil {
		q.awardBadges(ctx, job.UserID, *result.Score, *result.Cost)
	}
}

func (q *Queue) failTimeout(ctx context.Context, job Job, fields []zap.Field) {
	msg := fmt.Sprintf(
		"Execution terminated: Maximum timeout exceeded (%ds). Agent process killed by cgroups.",
		int(q.deadline.Seconds()),
	)
	if err := q.setStatus(ctx, job.SubmissionID, model.StatusFailed, msg); err != nil {
		logger.Error(ctx, "mark submission timed out failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Info(ctx, "submission timed out", append(fields, zap.Duration("deadline", q.deadline))...)
}

func (q *Queue) awardBadges(ctx context.Context, userID int64, score, cost float64) {
	fields := []zap.Field{zap.Int64("user_id", userID)}

	count, err := q.countSubmissions(ctx, userID)
	if err != nil {
		logger.Error(ctx, "count submissions failed, skipping badge evaluation", append(fields, zap.Error(err))...)
		return
	}
	existing, err := q.getUserBadges(ctx, userID)
	if err != nil {
		logger.Error(ctx, "read user badges failed, skipping badge evaluation", append(fields, zap.Error(err))...)
		return
	}
	challenge, err := q.getActiveChallenge(ctx)
	if err != nil {
		logger.Warn(ctx, "read active challenge failed, evaluating badges without it", append(fields, zap.Error(err))...)
		challenge = nil
	}

	earned := q.badges.Evaluate(existing, score, cost, count, challenge)
	if len(earned) == 0 {
		return
	}

	merged := make([]string, 0, len(existing)+len(earned))
	merged = append(merged, existing...)
	merged = append(merged, earned...)
	if err := q.setUserBadges(ctx, userID, merged); err != nil {
		logger.Error(ctx, "persist badges failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Info(ctx, "badges awarded", append(fields, zap.Strings("badges", earned))...)
}

func (q *Queue) setStatus(ctx context.Context, submissionID int64, status model.Status, logs string) error {
	ctx, cancel := context.WithTimeout(ctx, q.storeTimeout)
	defer cancel()
	return q.store.SetStatus(ctx, submissionID, status, logs)
}

func (q *Queue) getStatus(ctx context.Context, submissionID int64) (model.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, q.storeTimeout)
	defer cancel()
	return q.store.GetStatus(ctx, submissionID)
}

func (q *Queue) setJudged(ctx context.Context, submissionID int64, result JudgedResult) error {
	ctx, cancel := context.WithTimeout(ctx, q.storeTimeout)
	defer cancel()
	return q.store.SetJudged(ctx, submissionID, result)
}

func (q *Queue) countSubmissions(ctx context.Context, userID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, q.storeTimeout)
	defer cancel()
	return q.store.CountSubmissions(ctx, userID)
}

func (q *Queue) getUserBadges(ctx context.Context, userID int64) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, q.storeTimeout)
	defer cancel()
	return q.store.GetUserBadges(ctx, userID)
}

func (q *Queue) setUserBadges(ctx context.Context, userID int64, badges []string) error {
	ctx, cancel := context.WithTimeout(ctx, q.storeTimeout)
	defer cancel()
	return q.store.SetUserBadges(ctx, userID, badges)
}

func (q *Queue) getActiveChallenge(ctx context.Context) (*Challenge, error) {
	ctx, cancel := context.WithTimeout(ctx, q.storeTimeout)
	defer cancel()
	return q.store.GetActiveChallenge(ctx)
}
