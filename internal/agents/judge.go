package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/agentcore"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/prompt"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

const judgeTemplate = `You are the Judge agent, the final reviewer of this deliberation round.
Read every prior agent output and produce the final artifact, along with
a self-reported assessment of how well-grounded, coherent, and complete
it is. Respond with exactly one JSON object:
{
  "final_artifact": {
    "type": string,
    "sections": [{"title": string, "content": string, "subsections": [...], "confidence": number in [0,1], "evidence": [{"citation_id": string}]}],
    "metadata": {}
  },
  "groundedness": number in [0,1],
  "coherence": number in [0,1],
  "completeness": number in [0,1],
  "revision_notes": string
}`

// Judge implements spec.md §4.7's Judge contract, including the
// consensus-score computation and accept/needs_revision decision that
// drives the engine's deliberation-round loop.
type Judge struct {
	base  *agentcore.Base
	model state.ModelDescriptor

	consensusThreshold float64 // C_accept, default 0.85
	maxRounds          int     // R_max, default 7
}

// NewJudge constructs a Judge. consensusThreshold and maxRounds default to
// spec.md's documented values when given as <= 0.
func NewJudge(base *agentcore.Base, model state.ModelDescriptor, consensusThreshold float64, maxRounds int) *Judge {
	if consensusThreshold <= 0 {
		consensusThreshold = 0.85
	}
	if maxRounds <= 0 {
		maxRounds = 7
	}
	return &Judge{base: base, model: model, consensusThreshold: consensusThreshold, maxRounds: maxRounds}
}

// Think runs the Judge's think-cycle, writes state.FinalArtifact, and
// updates state.ConsensusScore.
func (a *Judge) Think(ctx context.Context, s *state.SharedState, deadline time.Time) {
	h := agentcore.Hooks{
		AgentID:  state.AgentJudge,
		Model:    a.model,
		Template: judgeTemplate,
		PrepareInput: func(s *state.SharedState) (any, []prompt.EvidenceBlock, error) {
			return map[string]any{
				"intent":            s.Intent,
				"plan":              s.Plan,
				"research_findings": s.ResearchFindings,
				"audit_report":      s.AuditReport,
				"visualizations":    s.Visualizations,
				"deliberation_round": s.DeliberationRound,
			}, nil, nil
		},
		Parse:   a.parseFinalArtifact,
		Degrade: degradeFinalArtifact,
	}

	out := a.base.Think(ctx, h, s, deadline)
	artifact, _ := out.(*state.FinalArtifactOutput)
	s.FinalArtifact = artifact
	s.SetAgentOutput(state.AgentJudge, artifact)
	if artifact != nil {
		score := (artifact.Groundedness + artifact.Coherence + artifact.Completeness) / 3
		s.ConsensusScore = &score
	}
}

func (a *Judge) parseFinalArtifact(obj map[string]any, s *state.SharedState) (any, error) {
	artifactObj, ok := obj["final_artifact"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("final_artifact is required")
	}

	rawSections, _ := artifactObj["sections"].([]any)
	sections := make([]state.ArtifactSection, 0, len(rawSections))
	for _, raw := range rawSections {
		section, err := parseArtifactSection(raw)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}

	metadata, _ := artifactObj["metadata"].(map[string]any)

	groundedness := clamp01(floatField(obj, "groundedness", 0))
	coherence := clamp01(floatField(obj, "coherence", 0))
	completeness := clamp01(floatField(obj, "completeness", 0))
	consensus := (groundedness + coherence + completeness) / 3

	decision := "accept"
	if consensus < a.consensusThreshold && s.DeliberationRound < a.maxRounds {
		decision = "needs_revision"
	}

	return &state.FinalArtifactOutput{
		Type:          stringOr(artifactObj, "type", ""),
		Sections:      sections,
		Metadata:      metadata,
		Decision:      decision,
		RevisionNotes: stringOr(obj, "revision_notes", ""),
		Groundedness:  groundedness,
		Coherence:     coherence,
		Completeness:  completeness,
	}, nil
}

func parseArtifactSection(raw any) (state.ArtifactSection, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return state.ArtifactSection{}, fmt.Errorf("each artifact section must be an object")
	}

	rawSub, _ := m["subsections"].([]any)
	subsections := make([]state.ArtifactSection, 0, len(rawSub))
	for _, sub := range rawSub {
		s, err := parseArtifactSection(sub)
		if err != nil {
			return state.ArtifactSection{}, err
		}
		subsections = append(subsections, s)
	}

	rawEvidence, _ := m["evidence"].([]any)
	evidence := make([]state.CitationReference, 0, len(rawEvidence))
	for _, e := range rawEvidence {
		em, ok := e.(map[string]any)
		if !ok {
			continue
		}
		evidence = append(evidence, state.CitationReference{CitationID: stringOr(em, "citation_id", "")})
	}

	return state.ArtifactSection{
		Title:       stringOr(m, "title", ""),
		Content:     stringOr(m, "content", ""),
		Subsections: subsections,
		Confidence:  clamp01(floatField(m, "confidence", 0)),
		Evidence:    evidence,
	}, nil
}

func degradeFinalArtifact(s *state.SharedState) any {
	return &state.FinalArtifactOutput{
		Decision: "accept",
		Sections: []state.ArtifactSection{},
	}
}
