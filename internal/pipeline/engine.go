// Package pipeline implements PipelineEngine: the mode→agent-sequence
// lookup, sequential execution with per-agent quality gates, deadline
// propagation, and the deliberation-round revision loop (spec.md §4.8).
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/logging"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/modelslot"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/pipelineerrors"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

// Agent is the contract every registered deliberation agent satisfies.
// Think must never panic or return an error; failures are recorded on s
// via s.RecordError and surfaced as a degraded typed output, per the
// think-cycle's guarantee.
type Agent interface {
	Think(ctx context.Context, s *state.SharedState, deadline time.Time)
}

// Config holds the engine's own scheduling knobs.
type Config struct {
	AgentTimeBudget       time.Duration // default 1800s
	MaxDeliberationRounds int           // R_max, default 7
	CancellationGrace     time.Duration // bounded wait for an interrupted think-cycle to return
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		AgentTimeBudget:       1800 * time.Second,
		MaxDeliberationRounds: 7,
		CancellationGrace:     5 * time.Second,
	}
}

// Engine sequences agents per mode and enforces quality gates between
// steps.
type Engine struct {
	cfg    Config
	agents map[state.AgentID]Agent
	slot   *modelslot.Slot
}

// New constructs an Engine bound to the run's ModelSlot (released on
// Run's return, per spec.md §4.8 step 5).
func New(slot *modelslot.Slot, cfg Config) *Engine {
	if cfg.AgentTimeBudget <= 0 {
		cfg.AgentTimeBudget = 1800 * time.Second
	}
	if cfg.MaxDeliberationRounds <= 0 {
		cfg.MaxDeliberationRounds = 7
	}
	if cfg.CancellationGrace <= 0 {
		cfg.CancellationGrace = 5 * time.Second
	}
	return &Engine{cfg: cfg, agents: map[state.AgentID]Agent{}, slot: slot}
}

// Register binds an agent implementation to its AgentID.
func (e *Engine) Register(id state.AgentID, agent Agent) {
	e.agents[id] = agent
}

// sequenceFor returns the mode's fixed agent order, per spec.md §4.8 step 2.
func sequenceFor(mode state.Mode) ([]state.AgentID, error) {
	switch mode {
	case state.ModeResearch:
		return []state.AgentID{state.AgentInterpreter, state.AgentPlanner, state.AgentGrounder, state.AgentAuditor, state.AgentJudge}, nil
	case state.ModeProject:
		return []state.AgentID{state.AgentInterpreter, state.AgentPlanner, state.AgentAuditor, state.AgentVisualizer, state.AgentJudge}, nil
	case state.ModeLearn:
		return []state.AgentID{state.AgentInterpreter, state.AgentPlanner, state.AgentGrounder, state.AgentJudge}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// revisionSubsequence is the fixed agent range re-run when Judge requests
// revision, per spec.md §9's resolved open question: Grounder→Auditor→Judge
// whenever those agents are present in the mode's sequence; modes lacking
// Grounder (project) or Auditor (learn) simply skip the absent step.
func revisionSubsequence(full []state.AgentID) []state.AgentID {
	var out []state.AgentID
	started := false
	for _, id := range full {
		if id == state.AgentGrounder {
			started = true
		}
		if started {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		// No Grounder in this mode's sequence (project mode): re-run from
		// whichever revision-eligible agent exists last before Judge.
		for _, id := range full {
			if id == state.AgentAuditor || id == state.AgentVisualizer {
				started = true
			}
			if started {
				out = append(out, id)
			}
		}
	}
	return out
}

// Run executes the full deliberation pipeline for mode, returning the
// resulting SharedState. It never returns an error: configuration and
// unknown-mode failures are the only things that halt the run early, and
// those are reported via a recorded state.errors entry plus an early
// return, consistent with spec.md §4.8/§7.
func (e *Engine) Run(ctx context.Context, userBrief string, mode state.Mode, clarifications map[string]string, sessionID string, overallDeadline time.Time) *state.SharedState {
	s := state.New(userBrief, mode, clarifications, sessionID)
	defer e.slot.Release(context.Background())

	sequence, err := sequenceFor(mode)
	if err != nil {
		s.RecordError("", (&pipelineerrors.ConfigError{Field: "mode", Reason: err.Error()}).Error())
		return s
	}

	if !e.runSequence(ctx, s, sequence, overallDeadline) {
		return s
	}

	for {
		if s.FinalArtifact == nil || s.FinalArtifact.Decision != "needs_revision" {
			return s
		}
		if s.DeliberationRound >= e.cfg.MaxDeliberationRounds {
			return s
		}

		s.DeliberationRound++
		logging.Info("pipeline: starting revision round", "round", s.DeliberationRound, "session_id", sessionID)

		rerun := revisionSubsequence(sequence)
		if !e.runSequence(ctx, s, rerun, overallDeadline) {
			return s
		}
	}
}

// runSequence runs each agent in order, applying its quality gate. It
// returns false if the overall deadline expired before the sequence
// finished; the caller's SharedState still reflects everything completed
// so far.
func (e *Engine) runSequence(ctx context.Context, s *state.SharedState, sequence []state.AgentID, overallDeadline time.Time) bool {
	for _, id := range sequence {
		if time.Now().After(overallDeadline) {
			s.RecordError(id, "overall deadline expired before this agent ran")
			return false
		}

		agent, ok := e.agents[id]
		if !ok {
			s.RecordError(id, "no agent registered for this id")
			continue
		}

		perStepDeadline := earlier(overallDeadline, time.Now().Add(e.cfg.AgentTimeBudget))

		if !e.runAgent(ctx, agent, id, s, perStepDeadline) {
			s.RecordError(id, (&pipelineerrors.Cancellation{AgentID: string(id)}).Error())
			return false
		}

		if reason, ok := qualityGateRejects(id, s); ok {
			s.RecordError(id, (&pipelineerrors.GateRejected{AgentID: string(id), Reason: reason}).Error())
		}
	}
	return true
}

// runAgent calls agent.Think and returns false only if ctx was cancelled
// and the think-cycle did not return within the cancellation grace period.
func (e *Engine) runAgent(ctx context.Context, agent Agent, id state.AgentID, s *state.SharedState, deadline time.Time) bool {
	done := make(chan struct{})
	go func() {
		agent.Think(ctx, s, deadline)
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		select {
		case <-done:
			return true
		case <-time.After(e.cfg.CancellationGrace):
			return false
		}
	}
}

// qualityGateRejects implements spec.md §4.8's per-agent quality gates.
func qualityGateRejects(id state.AgentID, s *state.SharedState) (string, bool) {
	switch id {
	case state.AgentInterpreter:
		if s.Intent == nil || s.Intent.PrimaryGoal == "" || s.Intent.OutputType == "" {
			return "intent.primary_goal and output_type must be set", true
		}
	case state.AgentPlanner:
		if s.Plan == nil || len(s.Plan.ResearchQuestions) == 0 {
			return "plan.research_questions must be non-empty", true
		}
	case state.AgentGrounder:
		if len(s.ResearchFindings) == 0 {
			return "research_findings must have at least one entry", true
		}
		for _, f := range s.ResearchFindings {
			if f.Answer == "" {
				continue
			}
			cited := false
			for _, kf := range f.KeyFindings {
				if len(kf.Evidence) > 0 {
					cited = true
					break
				}
			}
			if !cited && !s.HasErrorFor(state.AgentGrounder) {
				return fmt.Sprintf("finding for question %q has a non-trivial answer with no cited source and no recorded warning", f.QuestionID), true
			}
		}
	case state.AgentAuditor:
		if s.AuditReport == nil || s.AuditReport.RiskAssessment.OverallRiskLevel == "" {
			return "audit_report.risk_assessment.overall_risk_level must be set", true
		}
	case state.AgentJudge:
		if s.FinalArtifact == nil || len(s.FinalArtifact.Sections) == 0 {
			return "final_artifact.sections must be non-empty", true
		}
		if s.ConsensusScore == nil || *s.ConsensusScore < 0 || *s.ConsensusScore > 1 {
			return "consensus_score must be set and within [0,1]", true
		}
	}
	return "", false
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
