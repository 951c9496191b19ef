package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/agentcore"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/pipelineerrors"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/prompt"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/retrieval"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

const grounderTemplate = `You are the Grounder agent. For each research question, use only the
retrieved evidence below to produce a grounded answer. Cite every claim
with the [Source N] label that corresponds to a source_id from that
question's evidence list; never invent a source_id that is not listed.
Respond with exactly one JSON object:
{
  "findings": [{
    "question_id": string,
    "answer": string,
    "key_findings": [{
      "finding": string,
      "evidence": [{"source_id": string, "excerpt": string, "reliability": "high"|"medium"|"low"}],
      "confidence": number in [0,1]
    }],
    "contradictions": [string],
    "knowledge_gaps": [string],
    "overall_confidence": number in [0,1]
  }]
}`

// Grounder implements spec.md §4.7's Grounder contract. Its retrieval
// step runs outside the think-cycle, since EvidenceRetriever is not a
// model invocation; only the answer-synthesis step goes through
// agentcore.Base.
type Grounder struct {
	base      *agentcore.Base
	model     state.ModelDescriptor
	retriever *retrieval.Retriever

	maxSourcesPerQuestion int
}

// NewGrounder constructs a Grounder bound to a Retriever for evidence
// assembly and the run's shared think-cycle base for answer synthesis.
func NewGrounder(base *agentcore.Base, model state.ModelDescriptor, retriever *retrieval.Retriever, maxSourcesPerQuestion int) *Grounder {
	if maxSourcesPerQuestion <= 0 {
		maxSourcesPerQuestion = 10
	}
	return &Grounder{base: base, model: model, retriever: retriever, maxSourcesPerQuestion: maxSourcesPerQuestion}
}

// Think runs EvidenceRetriever, then the Grounder's think-cycle, writing
// state.Evidence and state.ResearchFindings.
func (a *Grounder) Think(ctx context.Context, s *state.SharedState, deadline time.Time) {
	if s.Plan != nil {
		questions := make([]retrieval.Question, 0, len(s.Plan.ResearchQuestions))
		for _, rq := range s.Plan.ResearchQuestions {
			questions = append(questions, retrieval.Question{ID: rq.ID, Text: rq.Question})
		}
		evidence, warnings := a.retriever.Retrieve(ctx, questions, a.maxSourcesPerQuestion, deadline)
		s.Evidence = evidence
		for _, w := range warnings {
			s.RecordError(state.AgentGrounder, (&pipelineerrors.RetrievalWarning{QuestionID: w.QuestionID, Origin: w.Origin, Cause: w.Err}).Error())
		}
	}

	h := agentcore.Hooks{
		AgentID:  state.AgentGrounder,
		Model:    a.model,
		Template: grounderTemplate,
		PrepareInput: func(s *state.SharedState) (any, []prompt.EvidenceBlock, error) {
			if s.Plan == nil {
				return nil, nil, fmt.Errorf("plan is required before grounding")
			}
			blocks := make([]prompt.EvidenceBlock, 0, len(s.Plan.ResearchQuestions))
			for _, rq := range s.Plan.ResearchQuestions {
				blocks = append(blocks, prompt.EvidenceBlock{QuestionID: rq.ID, Sources: s.Evidence[rq.ID]})
			}
			return map[string]any{"research_questions": s.Plan.ResearchQuestions}, blocks, nil
		},
		Parse:   func(obj map[string]any, s *state.SharedState) (any, error) { return a.parseFindings(obj, s) },
		Degrade: a.degradeFindings,
	}

	out := a.base.Think(ctx, h, s, deadline)
	findings, _ := out.([]state.ResearchFinding)
	s.ResearchFindings = findings
	s.SetAgentOutput(state.AgentGrounder, findings)
}

func (a *Grounder) parseFindings(obj map[string]any, s *state.SharedState) (any, error) {
	raw, ok := obj["findings"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("findings must be a non-empty array")
	}

	findings := make([]state.ResearchFinding, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("each finding must be an object")
		}
		questionID, _ := m["question_id"].(string)
		if questionID == "" {
			return nil, fmt.Errorf("finding missing question_id")
		}

		validSources := sourceIDSet(s.Evidence[questionID])
		keyFindings, err := parseKeyFindings(m, validSources)
		if err != nil {
			return nil, fmt.Errorf("question %q: %w", questionID, err)
		}

		findings = append(findings, state.ResearchFinding{
			QuestionID:        questionID,
			Answer:            stringOr(m, "answer", ""),
			KeyFindings:       keyFindings,
			Contradictions:    stringSliceField(m, "contradictions"),
			KnowledgeGaps:     stringSliceField(m, "knowledge_gaps"),
			OverallConfidence: clamp01(floatField(m, "overall_confidence", 0)),
		})
	}

	return findings, nil
}

func parseKeyFindings(m map[string]any, validSources map[string]bool) ([]state.KeyFinding, error) {
	raw, ok := m["key_findings"].([]any)
	if !ok {
		return nil, nil
	}

	out := make([]state.KeyFinding, 0, len(raw))
	for _, item := range raw {
		km, ok := item.(map[string]any)
		if !ok {
			continue
		}

		evidenceRaw, _ := km["evidence"].([]any)
		evidence := make([]state.EvidenceRef, 0, len(evidenceRaw))
		for _, e := range evidenceRaw {
			em, ok := e.(map[string]any)
			if !ok {
				continue
			}
			sourceID, _ := em["source_id"].(string)
			if sourceID != "" && !validSources[sourceID] {
				return nil, fmt.Errorf("cited source_id %q is not present in this question's evidence list", sourceID)
			}
			evidence = append(evidence, state.EvidenceRef{
				SourceID:    sourceID,
				Excerpt:     stringOr(em, "excerpt", ""),
				Reliability: stringOr(em, "reliability", "medium"),
			})
		}

		out = append(out, state.KeyFinding{
			Finding:    stringOr(km, "finding", ""),
			Evidence:   evidence,
			Confidence: clamp01(floatField(km, "confidence", 0)),
		})
	}
	return out, nil
}

func sourceIDSet(sources []state.SourceRecord) map[string]bool {
	set := make(map[string]bool, len(sources))
	for i, src := range sources {
		if src.CitationID != "" {
			set[src.CitationID] = true
		}
		set[fmt.Sprintf("source-%d", i+1)] = true
	}
	return set
}

func (a *Grounder) degradeFindings(s *state.SharedState) any {
	if s.Plan == nil {
		return []state.ResearchFinding{}
	}
	findings := make([]state.ResearchFinding, 0, len(s.Plan.ResearchQuestions))
	for _, rq := range s.Plan.ResearchQuestions {
		findings = append(findings, state.ResearchFinding{
			QuestionID:        rq.ID,
			OverallConfidence: 0.0,
		})
	}
	return findings
}
