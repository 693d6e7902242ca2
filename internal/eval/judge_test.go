package eval_test

import (
	"encoding/json"
	"testing"

	"agentbench/internal/eval"
	"agentbench/internal/submission/model"
)

func TestJudgeSuccessContract(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{values: []float64{0.5, 0.25, 0.4}}
	judge, err := eval.NewJudge(eval.JudgeConfig{Source: source})
	if err != nil {
		t.Fatalf("NewJudge: %v", err)
	}

	result := judge.Evaluate(eval.Outcome{Success: true})
	if result.Status != model.StatusCompleted {
		t.Fatalf("status = %q, want %q", result.Status, model.StatusCompleted)
	}
	if result.Score == nil || *result.Score < 0 || *result.Score > 100 {
		t.Errorf("score = %v, want non-nil within [0,100]", result.Score)
	}
	if result.Cost == nil || *result.Cost < 0 {
		t.Errorf("cost = %v, want non-nil non-negative", result.Cost)
	}
	if result.Logs == "" {
		t.Error("logs must not be empty")
	}
	if result.Feedback == nil {
		t.Fatal("feedback must be attached")
	}
	if len(result.Feedback.Trace) == 0 || len(result.Feedback.PerTaskResults) == 0 {
		t.Error("feedback must carry trace and per-task results")
	}
}

func TestJudgeFailureContract(t *testing.T) {
	t.Parallel()

	// First draw 0.95 >= success rate, so a finished run is judged a failure.
	source := &scriptedSource{values: []float64{0.95, 0.5, 0.5}}
	judge, err := eval.NewJudge(eval.JudgeConfig{Source: source})
	if err != nil {
		t.Fatalf("NewJudge: %v", err)
	}

	result := judge.Evaluate(eval.Outcome{Success: true})
	if result.Status != model.StatusFailed {
		t.Fatalf("status = %q, want %q", result.Status, model.StatusFailed)
	}
	if result.Score != nil || result.Cost != nil {
		t.Errorf("score/cost = %v/%v, want nil for a judged failure", result.Score, result.Cost)
	}
	if result.Feedback == nil {
		t.Error("a judged failure still carries feedback")
	}
}

func TestJudgeExecutorFailureNeverSucceeds(t *testing.T) {
	t.Parallel()

	// Draws that would classify a finished run as success; the executor's own
	// failure signal must override them.
	source := &scriptedSource{values: []float64{0.0}}
	judge, err := eval.NewJudge(eval.JudgeConfig{Source: source})
	if err != nil {
		t.Fatalf("NewJudge: %v", err)
	}

	result := judge.Evaluate(eval.Outcome{Success: false, Output: "crashed"})
	if result.Status != model.StatusFailed {
		t.Fatalf("status = %q, want %q", result.Status, model.StatusFailed)
	}
}

func TestJudgeDeterministicGivenSameDraws(t *testing.T) {
	t.Parallel()

	draws := []float64{0.3, 0.7, 0.2}
	first, err := eval.NewJudge(eval.JudgeConfig{Source: &scriptedSource{values: draws}})
	if err != nil {
		t.Fatalf("NewJudge: %v", err)
	}
	second, err := eval.NewJudge(eval.JudgeConfig{Source: &scriptedSource{values: draws}})
	if err != nil {
		t.Fatalf("NewJudge: %v", err)
	}

	a := first.Evaluate(eval.Outcome{Success: true})
	b := second.Evaluate(eval.Outcome{Success: true})

	if a.Status != b.Status || *a.Score != *b.Score || *a.Cost != *b.Cost || a.Logs != b.Logs {
		t.Errorf("identical draws produced different results: %+v vs %+v", a, b)
	}
}

func TestFeedbackWireShape(t *testing.T) {
	t.Parallel()

	feedback := model.Feedback{
		LLMJudgeSummary: "summary",
		Trace:           []string{"Init Agent", "Complete"},
		ErrorCategories: []string{"Formatting"},
		PerTaskResults: []model.TaskResult{
			{Task: "step one", Status: "Pass"},
			{Task: "step two", Status: "Fail"},
		},
	}

	raw, err := json.Marshal(feedback)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var wire map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"llm_judge_summary", "trace", "error_categories", "per_task_results"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("wire document missing %q", key)
		}
	}

	var decoded model.Feedback
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal round-trip: %v", err)
	}
	if decoded.LLMJudgeSummary != feedback.LLMJudgeSummary ||
		len(decoded.Trace) != len(feedback.Trace) ||
		len(decoded.PerTaskResults) != len(feedback.PerTaskResults) ||
		decoded.PerTaskResults[1].Status != "Fail" {
		t.Errorf("round-trip altered feedback: %+v", decoded)
	}
}
