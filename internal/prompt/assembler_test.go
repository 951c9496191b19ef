package prompt

import (
	"strings"
	"testing"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

func TestAssembleWithoutEvidence(t *testing.T) {
	got, err := Assemble("Summarize the brief.", map[string]string{"brief": "hello"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "Summarize the brief.\n\n## Input\n\n```json\n") {
		t.Fatalf("unexpected prompt shape:\n%s", got)
	}
	if strings.Contains(got, "Retrieved Evidence") {
		t.Fatalf("did not expect an evidence section:\n%s", got)
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	input := map[string]any{"a": 1, "b": "two"}
	first, err := Assemble("T", input, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Assemble("T", input, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical prompts for identical input, got:\n%s\nvs\n%s", first, second)
	}
}

func TestAssembleWithEvidenceLabelsSourcesSequentially(t *testing.T) {
	evidence := []EvidenceBlock{
		{
			QuestionID: "rq1",
			Sources: []state.SourceRecord{
				{Origin: "vector", Title: "First", Content: "alpha", RelevanceScore: 0.9},
				{Origin: "web", Title: "Second", URL: "https://x", Content: "beta", RelevanceScore: 0.5},
			},
		},
	}
	got, err := Assemble("Answer the question.", map[string]string{"q": "rq1"}, evidence)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "[Source 1]") || !strings.Contains(got, "[Source 2]") {
		t.Fatalf("expected sequential source labels:\n%s", got)
	}
	if strings.Index(got, "Retrieved Evidence") > strings.Index(got, "## Input") {
		t.Fatalf("expected evidence section before input section:\n%s", got)
	}
}
