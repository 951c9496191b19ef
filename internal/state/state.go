// Package state defines SharedState, the per-run deliberation context
// that every agent reads from and writes into. SharedState is created at
// pipeline entry and discarded at pipeline exit; nothing here is shared
// across runs.
package state

import (
	"fmt"
	"sync"
	"time"
)

// Mode selects the agent sequence a run follows.
type Mode string

const (
	ModeResearch Mode = "research"
	ModeProject  Mode = "project"
	ModeLearn    Mode = "learn"
)

// AgentID names one of the fixed deliberation agents.
type AgentID string

const (
	AgentInterpreter AgentID = "interpreter"
	AgentPlanner     AgentID = "planner"
	AgentGrounder    AgentID = "grounder"
	AgentAuditor     AgentID = "auditor"
	AgentVisualizer  AgentID = "visualizer"
	AgentJudge       AgentID = "judge"
)

// ModelDescriptor identifies a model an agent wants resident in the
// accelerator slot. It is set once per agent at construction and never
// mutated afterward.
type ModelDescriptor struct {
	ModelID          string
	MinMemoryMB      int
	Temperature      float64
	MaxContextTokens int
	MaxGenTokens     int
	RepeatPenalty    float64
	TopK             int
	TopP             float64
}

// ErrorRecord is an append-only entry in state.errors.
type ErrorRecord struct {
	Agent     AgentID
	Message   string
	Timestamp time.Time
}

// SourceRecord is one piece of evidence assembled by EvidenceRetriever for
// a single research question.
type SourceRecord struct {
	Origin         string // "web" or "vector"
	Title          string
	URL            string // optional
	Content        string // truncated
	Snippet        string // optional
	CitationID     string // optional, set for web-origin records
	RelevanceScore float64
}

// Citation is owned by a CitationRegistry attached to the run.
type Citation struct {
	ID              string
	Title           string
	URL             string
	AccessedDate    time.Time
	Authors         []string
	PublicationDate string
	SourceType      string
	Publisher       string
	DOI             string
}

// SharedState is the per-run typed deliberation context. All field
// mutation from outside an agent's own think-cycle happens only through
// the engine, which is the sole mutator; agents never see each other's
// goroutines because the pipeline executes agents strictly sequentially.
// The mutex below guards against the cancellation path (which can read
// a partial state concurrently with the agent it interrupted returning).
type SharedState struct {
	mu sync.Mutex

	UserBrief      string
	Mode           Mode
	Clarifications map[string]string

	Intent          *IntentOutput
	Plan            *PlanOutput
	AuditReport     *AuditReportOutput
	Visualizations  []VisualizationItem
	FinalArtifact   *FinalArtifactOutput
	ResearchFindings []ResearchFinding

	Evidence map[string][]SourceRecord

	AgentOutputs map[AgentID]any

	Errors []ErrorRecord

	ConsensusScore    *float64
	DeliberationRound int

	SessionID string
}

// New creates a SharedState ready for a fresh run.
func New(userBrief string, mode Mode, clarifications map[string]string, sessionID string) *SharedState {
	if clarifications == nil {
		clarifications = map[string]string{}
	}
	return &SharedState{
		UserBrief:         userBrief,
		Mode:              mode,
		Clarifications:    clarifications,
		Evidence:          map[string][]SourceRecord{},
		AgentOutputs:      map[AgentID]any{},
		Errors:            nil,
		DeliberationRound: 1,
		SessionID:         sessionID,
	}
}

// RecordError appends a typed error entry. Safe for concurrent callers
// (the cancellation path may race with an in-flight agent's own
// completion).
func (s *SharedState) RecordError(agent AgentID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, ErrorRecord{Agent: agent, Message: message, Timestamp: time.Now()})
}

// SetAgentOutput records an agent's typed output exactly once. Overwriting
// an existing key is a programmer error — each agent runs at most once per
// deliberation round and the engine is responsible for resetting the
// sequence between rounds where the spec calls for a rerun.
func (s *SharedState) SetAgentOutput(agent AgentID, output any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AgentOutputs[agent] = output
}

// HasOutput reports whether agent has a recorded output.
func (s *SharedState) HasOutput(agent AgentID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.AgentOutputs[agent]
	return ok
}

// HasErrorFor reports whether any error entry references agent.
func (s *SharedState) HasErrorFor(agent AgentID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.Errors {
		if e.Agent == agent {
			return true
		}
	}
	return false
}

// ErrorsSnapshot returns a copy of the error log for read-only inspection.
func (s *SharedState) ErrorsSnapshot() []ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ErrorRecord, len(s.Errors))
	copy(out, s.Errors)
	return out
}

// CheckInvariants validates the invariants spec.md §3 and §8 place on
// SharedState. It is used by tests and by the engine after each agent
// completes; a violation indicates an engine or agent bug, not a
// recoverable runtime failure.
func (s *SharedState) CheckInvariants() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for agent, out := range s.AgentOutputs {
		hasErr := false
		for _, e := range s.Errors {
			if e.Agent == agent {
				hasErr = true
				break
			}
		}
		if !hasErr && isEmptyOutput(out) {
			return fmt.Errorf("agent_outputs[%s] is empty with no matching error entry", agent)
		}
	}

	if s.Plan != nil {
		valid := map[string]bool{}
		for _, rq := range s.Plan.ResearchQuestions {
			valid[rq.ID] = true
		}
		for qid := range s.Evidence {
			if !valid[qid] {
				return fmt.Errorf("evidence key %q is not a plan research-question id", qid)
			}
		}
	}

	if s.DeliberationRound < 1 {
		return fmt.Errorf("deliberation_round must be >= 1, got %d", s.DeliberationRound)
	}

	if s.ConsensusScore != nil && s.FinalArtifact != nil {
		cs := *s.ConsensusScore
		if cs < 0 || cs > 1 {
			return fmt.Errorf("consensus_score %f out of [0,1]", cs)
		}
	}

	return nil
}

func isEmptyOutput(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *IntentOutput:
		return t == nil
	case *PlanOutput:
		return t == nil
	case *AuditReportOutput:
		return t == nil
	case *FinalArtifactOutput:
		return t == nil
	case []ResearchFinding:
		return len(t) == 0
	case []VisualizationItem:
		return false // an empty, degraded visualization list is a valid typed output
	default:
		return false
	}
}
