package agents

import (
	"testing"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

func TestParseVisualizationsAcceptsOrderedList(t *testing.T) {
	obj := map[string]any{
		"visualizations": []any{
			map[string]any{"id": "v1", "type": "flowchart", "title": "t1", "purpose": "p1", "specification": map[string]any{"nodes": []any{"a", "b"}}},
			map[string]any{"id": "v2", "type": "chart", "title": "t2", "purpose": "p2", "specification": nil},
		},
	}

	out, err := parseVisualizations(obj, state.New("brief", state.ModeProject, nil, "s1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := out.([]state.VisualizationItem)
	if len(items) != 2 {
		t.Fatalf("expected 2 visualizations, got %d", len(items))
	}
	if items[0].ID != "v1" || items[0].Type != "flowchart" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].ID != "v2" || items[1].Type != "chart" {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func TestParseVisualizationsSkipsMalformedEntries(t *testing.T) {
	obj := map[string]any{"visualizations": []any{"not an object", 42, map[string]any{"id": "v1", "title": "ok"}}}

	out, err := parseVisualizations(obj, state.New("brief", state.ModeProject, nil, "s1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := out.([]state.VisualizationItem)
	if len(items) != 1 || items[0].ID != "v1" {
		t.Fatalf("expected only the well-formed entry to survive, got %+v", items)
	}
}

func TestParseVisualizationsEmptyListIsValid(t *testing.T) {
	out, err := parseVisualizations(map[string]any{"visualizations": []any{}}, state.New("brief", state.ModeProject, nil, "s1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := out.([]state.VisualizationItem)
	if len(items) != 0 {
		t.Fatalf("expected empty slice, got %+v", items)
	}
}

func TestDegradeVisualizationsReturnsEmptySliceNotNil(t *testing.T) {
	out := degradeVisualizations(state.New("brief", state.ModeProject, nil, "s1")).([]state.VisualizationItem)
	if out == nil {
		t.Fatalf("degraded visualizations must be an empty slice, not nil")
	}
	if len(out) != 0 {
		t.Fatalf("expected empty slice, got %+v", out)
	}
}
