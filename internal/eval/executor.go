package eval

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Outcome is the raw result of running an agent artifact. The judge never
// trusts anything beyond the success signal and captured output.
type Outcome struct {
	Success bool
	Output  string
}

// Executor runs a submission's artifact. Run must honor context
// cancellation promptly; the queue, not the executor, enforces the
// wall-clock deadline.
type Executor interface {
	Run(ctx context.Context, submissionID int64) (Outcome, error)
}

// SimulatedExecutor stands in for the sandbox runtime. It sleeps for a
// randomized duration within [MinDuration, MaxDuration] and reports success,
// so runs near the deadline sometimes time out.
type SimulatedExecutor struct {
	MinDuration time.Duration
	MaxDuration time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedExecutor creates a simulated executor with the reference
// duration window of 3.5s to 5.5s.
func NewSimulatedExecutor(seed int64) *SimulatedExecutor {
	return &SimulatedExecutor{
		MinDuration: 3500 * time.Millisecond,
		MaxDuration: 5500 * time.Millisecond,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (e *SimulatedExecutor) Run(ctx context.Context, submissionID int64) (Outcome, error) {
	duration := e.MinDuration
	if e.MaxDuration > e.MinDuration {
		e.mu.Lock()
		duration += time.Duration(e.rng.Int63n(int64(e.MaxDuration - e.MinDuration)))
		e.mu.Unlock()
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-timer.C:
		return Outcome{Success: true, Output: "agent run finished"}, nil
	}
}
