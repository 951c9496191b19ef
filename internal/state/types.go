package state

// IntentOutput is written once by Interpreter.
type IntentOutput struct {
	PrimaryGoal           string   `json:"primary_goal"`
	Domain                string   `json:"domain"`
	OutputType             string   `json:"output_type"` // research_report | project_spec | learning_path
	Scope                  string   `json:"scope"`        // broad | moderate | narrow
	ExtractedRequirements  []string `json:"extracted_requirements"`
	Ambiguities            []string `json:"ambiguities"`
	ClarifyingQuestions    []string `json:"clarifying_questions"` // <= 5
	Confidence             float64  `json:"confidence"`
}

// ResearchQuestion is one node in Planner's research-question DAG.
type ResearchQuestion struct {
	ID                    string   `json:"id"`
	Question              string   `json:"question"`
	Type                  string   `json:"type"`     // factual | analytical | comparative | exploratory
	Priority              string   `json:"priority"` // critical | high | medium | low
	EstimatedTimeMinutes  int      `json:"estimated_time_minutes"`
	Dependencies          []string `json:"dependencies"`
}

// Phase groups research questions into an execution phase.
type Phase struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	RQIDs       []string `json:"rq_ids"`
	Parallel    bool     `json:"parallel"`
}

// PlanOutput is written once by Planner.
type PlanOutput struct {
	ResearchQuestions          []ResearchQuestion `json:"research_questions"`
	Phases                     []Phase            `json:"phases"`
	SuccessCriteria            []string           `json:"success_criteria"`
	EstimatedTotalTimeMinutes  int                `json:"estimated_total_time_minutes"`
}

// EvidenceRef is a cited excerpt inside a KeyFinding.
type EvidenceRef struct {
	SourceID    string `json:"source_id"`
	Excerpt     string `json:"excerpt"`
	Reliability string `json:"reliability"` // high | medium | low
}

// KeyFinding is one claim inside a ResearchFinding.
type KeyFinding struct {
	Finding    string        `json:"finding"`
	Evidence   []EvidenceRef `json:"evidence"`
	Confidence float64       `json:"confidence"`
}

// ResearchFinding is one element Grounder appends to research_findings,
// one per research question.
type ResearchFinding struct {
	QuestionID       string       `json:"question_id"`
	Answer           string       `json:"answer"`
	KeyFindings      []KeyFinding `json:"key_findings"`
	Contradictions   []string     `json:"contradictions"`
	KnowledgeGaps    []string     `json:"knowledge_gaps"`
	OverallConfidence float64     `json:"overall_confidence"`
}

// Risk is one entry in the Auditor's risk assessment.
type Risk struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Likelihood  string `json:"likelihood"`
	Mitigation  string `json:"mitigation"`
}

// RiskAssessment is the Auditor's overall risk summary.
type RiskAssessment struct {
	OverallRiskLevel string `json:"overall_risk_level"` // low | medium | high | critical | unknown
	Risks            []Risk `json:"risks"`
}

// TechnicalDependency is one entry in the Auditor's dependency inventory.
type TechnicalDependency struct {
	Name         string `json:"name"`
	Reason       string `json:"reason"`
	Availability string `json:"availability"`
}

// Dependencies groups the Auditor's technical and knowledge dependencies.
type Dependencies struct {
	Technical []TechnicalDependency `json:"technical"`
	Knowledge []string              `json:"knowledge"`
}

// FeasibilityAssessment is the Auditor's feasibility summary.
type FeasibilityAssessment struct {
	Technical string   `json:"technical"`
	Resource  string   `json:"resource"`
	Time      string   `json:"time"`
	Overall   float64  `json:"overall"`
	Blockers  []string `json:"blockers"`
}

// AuditReportOutput is written once by Auditor.
type AuditReportOutput struct {
	RiskAssessment         RiskAssessment         `json:"risk_assessment"`
	Dependencies           Dependencies           `json:"dependencies"`
	SecurityConcerns       []string               `json:"security_concerns"`
	FeasibilityAssessment  FeasibilityAssessment  `json:"feasibility_assessment"`
	Recommendations        []string               `json:"recommendations"`
}

// VisualizationItem is one element of the Visualizer's ordered output.
type VisualizationItem struct {
	ID            string `json:"id"`
	Type          string `json:"type"` // chart | diagram | flowchart | architecture | image
	Title         string `json:"title"`
	Purpose       string `json:"purpose"`
	Specification any    `json:"specification"` // opaque but JSON-serializable
}

// CitationReference is how a final-artifact section points back at a
// Citation owned by the run's CitationRegistry.
type CitationReference struct {
	CitationID string `json:"citation_id"`
}

// ArtifactSection is one element of the Judge's final_artifact.sections.
type ArtifactSection struct {
	Title       string              `json:"title"`
	Content     string              `json:"content"`
	Subsections []ArtifactSection   `json:"subsections,omitempty"`
	Confidence  float64             `json:"confidence"`
	Evidence    []CitationReference `json:"evidence"`
}

// FinalArtifactOutput is written once by Judge.
type FinalArtifactOutput struct {
	Type     string            `json:"type"`
	Sections []ArtifactSection `json:"sections"`
	Metadata map[string]any    `json:"metadata"`

	// Decision and RevisionNotes are Judge's deliberation verdict; they
	// ride alongside final_artifact rather than inside it because they
	// drive the engine's revision loop, not the rendered document.
	Decision      string  `json:"decision"` // accept | needs_revision
	RevisionNotes string  `json:"revision_notes,omitempty"`
	Groundedness  float64 `json:"groundedness"`
	Coherence     float64 `json:"coherence"`
	Completeness  float64 `json:"completeness"`
}
