// Package prompt implements PromptAssembler, the deterministic prompt
// builder of spec.md §4.4: a static template, an optional evidence block,
// and a fenced-JSON input fragment, concatenated with no randomness and no
// environment lookups.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

// EvidenceBlock holds the per-question evidence an agent wants rendered
// into the prompt under "## Retrieved Evidence". Sources are labeled
// [Source N] using their 1-based index within the slice.
type EvidenceBlock struct {
	QuestionID string
	Sources    []state.SourceRecord
}

// Assemble builds the deterministic prompt string:
//
//	<template>
//
//	## Retrieved Evidence
//
//	<formatted evidence blocks>   (only when evidence is non-empty)
//
//	## Input
//
//	```json
//	<input>
//	```
func Assemble(template string, input any, evidence []EvidenceBlock) (string, error) {
	var sb strings.Builder
	sb.WriteString(template)

	if len(evidence) > 0 {
		sb.WriteString("\n\n## Retrieved Evidence\n\n")
		for _, block := range evidence {
			sb.WriteString(formatEvidenceBlock(block))
		}
	}

	payload, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("prompt: marshal input: %w", err)
	}

	sb.WriteString("\n\n## Input\n\n```json\n")
	sb.Write(payload)
	sb.WriteString("\n```")

	return sb.String(), nil
}

func formatEvidenceBlock(block EvidenceBlock) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### Question %s\n\n", block.QuestionID)
	for i, src := range block.Sources {
		n := i + 1
		fmt.Fprintf(&sb, "[Source %d] (%s, relevance %.2f)\n", n, src.Origin, src.RelevanceScore)
		if src.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", src.Title)
		}
		if src.URL != "" {
			fmt.Fprintf(&sb, "URL: %s\n", src.URL)
		}
		fmt.Fprintf(&sb, "%s\n\n", src.Content)
	}
	sb.WriteString(fmt.Sprintf(
		"When citing a claim above, reference it by its [Source N] label using the corresponding source_id from question %s's evidence list.\n\n",
		block.QuestionID,
	))
	return sb.String()
}

// RetryInstruction is appended verbatim to a retried prompt when
// JSONExtractor or parse-validation rejected the previous attempt. The
// rest of the prompt is identical between attempts.
const RetryInstruction = "\n\nYour previous response could not be parsed as JSON. Respond with a single valid JSON object and nothing else — no prose, no markdown fences unless tagged ```json."
