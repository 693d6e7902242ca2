package eval

import (
	"fmt"
	"math/rand"
	"sync"

	"agentbench/internal/submission/model"
)

// OutcomeSource supplies the judge's random draws. Injectable so tests can
// script deterministic outcomes while production wiring uses a seeded PRNG.
type OutcomeSource interface {
	// Float64 returns a draw in [0.0, 1.0).
	Float64() float64
}

type randomSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSource returns a seedable OutcomeSource backed by math/rand.
func NewRandomSource(seed int64) OutcomeSource {
	return &randomSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *randomSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Judge translates a raw execution outcome into a bounded score/cost/feedback
// tuple. It runs outside the sandbox and never trusts artifact-reported
// metrics; the probabilistic classification is a placeholder for a real
// grading backend.
type Judge struct {
	source      OutcomeSource
	successRate float64
}

// JudgeConfig holds judge dependencies and settings.
type JudgeConfig struct {
	Source OutcomeSource

	// SuccessRate is the probability that a run which finished in time is
	// classified as a success. Default: 0.9.
	SuccessRate float64
}

// NewJudge creates a judge.
func NewJudge(cfg JudgeConfig) (*Judge, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("outcome source is required")
	}
	rate := cfg.SuccessRate
	if rate == 0 {
		rate = 0.9
	}
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("success rate must be within [0, 1]")
	}
	return &Judge{source: cfg.Source, successRate: rate}, nil
}

// Evaluate derives the judged result for one execution outcome.
// Score is in [0,100]; cost is non-negative; both are non-nil only when the
// judged status is Completed.
func (j *Judge) Evaluate(outcome Outcome) JudgedResult {
	success := outcome.Success && j.source.Float64() < j.successRate

	var score float64
	if success {
		score = 80 + j.source.Float64()*20
	} else {
		score = 20 + j.source.Float64()*40
	}
	cost := 0.1 + j.source.Float64()*0.5

	if success {
		s, c := score, cost
		return JudgedResult{
			Status:   model.StatusCompleted,
			Score:    &s,
			Cost:     &c,
			Logs:     fmt.Sprintf("Evaluation complete. Score: %.2f. Cost: $%.2f", score, cost),
			Feedback: buildFeedback(true),
		}
	}

	return JudgedResult{
		Status:   model.StatusFailed,
		Logs:     "[ERROR] Agent crashed during execution: task incomplete.",
		Feedback: buildFeedback(false),
	}
}

func buildFeedback(success bool) *model.Feedback {
	if success {
		return &model.Feedback{
			LLMJudgeSummary: "Automated evaluation completed. Agent demonstrated strong reasoning capabilities but encountered minor formatting issues in the final output.",
			Trace:           []string{"Init Agent", "Analyze Task", "Execute Tool", "Validate Output", "Complete"},
			ErrorCategories: []string{"Formatting"},
			PerTaskResults: []model.TaskResult{
				{Task: "Navigate to portal and authenticate", Status: "Pass"},
				{Task: "Extract patient claim ID", Status: "Pass"},
				{Task: "Identify ICD-10 codes", Status: "Pass"},
				{Task: "Determine denial reason", Status: "Fail"},
			},
		}
	}
	return &model.Feedback{
		LLMJudgeSummary: "The agent failed to complete the task.",
		Trace:           []string{"Init Agent", "Analyze Task", "Execute Tool", "Validate Output", "Complete"},
		ErrorCategories: []string{"Task Failure"},
		PerTaskResults: []model.TaskResult{
			{Task: "Navigate to portal and authenticate", Status: "Pass"},
			{Task: "Extract patient claim ID", Status: "Pass"},
			{Task: "Identify ICD-10 codes", Status: "Fail"},
			{Task: "Determine denial reason", Status: "Fail"},
		},
	}
}
