package agents

import (
	"testing"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

func TestParseIntentAcceptsValidObject(t *testing.T) {
	obj := map[string]any{
		"primary_goal": "understand blockchain consensus",
		"output_type":  "research_report",
		"scope":        "moderate",
		"confidence":   0.8,
	}
	out, err := parseIntent(obj, state.New("brief", state.ModeResearch, nil, "s1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	intent := out.(*state.IntentOutput)
	if intent.PrimaryGoal != "understand blockchain consensus" || intent.OutputType != "research_report" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}

func TestParseIntentRejectsMissingPrimaryGoal(t *testing.T) {
	_, err := parseIntent(map[string]any{"output_type": "research_report"}, state.New("brief", state.ModeResearch, nil, "s1"))
	if err == nil {
		t.Fatalf("expected a missing-primary_goal error")
	}
}

func TestParseIntentRejectsInvalidOutputType(t *testing.T) {
	obj := map[string]any{"primary_goal": "g", "output_type": "not_a_real_type"}
	_, err := parseIntent(obj, state.New("brief", state.ModeResearch, nil, "s1"))
	if err == nil {
		t.Fatalf("expected an invalid output_type error")
	}
}

func TestParseIntentCapsClarifyingQuestionsAtFive(t *testing.T) {
	questions := []any{"q1", "q2", "q3", "q4", "q5", "q6", "q7"}
	obj := map[string]any{"primary_goal": "g", "output_type": "research_report", "clarifying_questions": questions}
	out, err := parseIntent(obj, state.New("brief", state.ModeResearch, nil, "s1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	intent := out.(*state.IntentOutput)
	if len(intent.ClarifyingQuestions) != 5 {
		t.Fatalf("expected clarifying_questions capped at 5, got %d", len(intent.ClarifyingQuestions))
	}
}

func TestDegradeIntentUsesBriefAsPrimaryGoal(t *testing.T) {
	s := state.New("explain X", state.ModeLearn, nil, "s1")
	out := degradeIntent(s).(*state.IntentOutput)
	if out.PrimaryGoal != "explain X" || out.OutputType != "learning_path" || out.Confidence != 0.0 {
		t.Fatalf("unexpected degraded intent: %+v", out)
	}
}
