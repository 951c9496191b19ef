package agents

import (
	"context"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/agentcore"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/prompt"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

const auditorTemplate = `You are the Auditor agent. Given the plan and (if present) research
findings, assess risk, dependencies, security concerns, and feasibility.
Respond with exactly one JSON object:
{
  "risk_assessment": {
    "overall_risk_level": "low"|"medium"|"high"|"critical",
    "risks": [{"category": string, "description": string, "severity": string, "likelihood": string, "mitigation": string}]
  },
  "dependencies": {
    "technical": [{"name": string, "reason": string, "availability": string}],
    "knowledge": [string]
  },
  "security_concerns": [string],
  "feasibility_assessment": {"technical": string, "resource": string, "time": string, "overall": number in [0,1], "blockers": [string]},
  "recommendations": [string]
}`

// Auditor implements spec.md §4.7's Auditor contract.
type Auditor struct {
	base  *agentcore.Base
	model state.ModelDescriptor
}

// NewAuditor constructs an Auditor.
func NewAuditor(base *agentcore.Base, model state.ModelDescriptor) *Auditor {
	return &Auditor{base: base, model: model}
}

// Think runs the Auditor's think-cycle and writes state.AuditReport.
func (a *Auditor) Think(ctx context.Context, s *state.SharedState, deadline time.Time) {
	h := agentcore.Hooks{
		AgentID:  state.AgentAuditor,
		Model:    a.model,
		Template: auditorTemplate,
		PrepareInput: func(s *state.SharedState) (any, []prompt.EvidenceBlock, error) {
			return map[string]any{
				"plan":              s.Plan,
				"research_findings": s.ResearchFindings,
			}, nil, nil
		},
		Parse:   parseAuditReport,
		Degrade: degradeAuditReport,
	}

	out := a.base.Think(ctx, h, s, deadline)
	report, _ := out.(*state.AuditReportOutput)
	s.AuditReport = report
	s.SetAgentOutput(state.AgentAuditor, report)
}

func parseAuditReport(obj map[string]any, s *state.SharedState) (any, error) {
	riskAssessment := parseRiskAssessment(obj)
	dependencies := parseDependencies(obj)
	feasibility := parseFeasibility(obj)

	return &state.AuditReportOutput{
		RiskAssessment:        riskAssessment,
		Dependencies:          dependencies,
		SecurityConcerns:      stringSliceField(obj, "security_concerns"),
		FeasibilityAssessment: feasibility,
		Recommendations:       stringSliceField(obj, "recommendations"),
	}, nil
}

func parseRiskAssessment(obj map[string]any) state.RiskAssessment {
	m, _ := obj["risk_assessment"].(map[string]any)
	if m == nil {
		return state.RiskAssessment{OverallRiskLevel: "unknown"}
	}

	rawRisks, _ := m["risks"].([]any)
	risks := make([]state.Risk, 0, len(rawRisks))
	for _, item := range rawRisks {
		rm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		risks = append(risks, state.Risk{
			Category:    stringOr(rm, "category", ""),
			Description: stringOr(rm, "description", ""),
			Severity:    stringOr(rm, "severity", ""),
			Likelihood:  stringOr(rm, "likelihood", ""),
			Mitigation:  stringOr(rm, "mitigation", ""),
		})
	}

	return state.RiskAssessment{
		OverallRiskLevel: stringOr(m, "overall_risk_level", "unknown"),
		Risks:            risks,
	}
}

func parseDependencies(obj map[string]any) state.Dependencies {
	m, _ := obj["dependencies"].(map[string]any)
	if m == nil {
		return state.Dependencies{}
	}

	rawTech, _ := m["technical"].([]any)
	technical := make([]state.TechnicalDependency, 0, len(rawTech))
	for _, item := range rawTech {
		tm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		technical = append(technical, state.TechnicalDependency{
			Name:         stringOr(tm, "name", ""),
			Reason:       stringOr(tm, "reason", ""),
			Availability: stringOr(tm, "availability", ""),
		})
	}

	return state.Dependencies{
		Technical: technical,
		Knowledge: stringSliceField(m, "knowledge"),
	}
}

func parseFeasibility(obj map[string]any) state.FeasibilityAssessment {
	m, _ := obj["feasibility_assessment"].(map[string]any)
	if m == nil {
		return state.FeasibilityAssessment{}
	}
	return state.FeasibilityAssessment{
		Technical: stringOr(m, "technical", ""),
		Resource:  stringOr(m, "resource", ""),
		Time:      stringOr(m, "time", ""),
		Overall:   clamp01(floatField(m, "overall", 0)),
		Blockers:  stringSliceField(m, "blockers"),
	}
}

func degradeAuditReport(s *state.SharedState) any {
	return &state.AuditReportOutput{
		RiskAssessment: state.RiskAssessment{OverallRiskLevel: "unknown"},
	}
}
