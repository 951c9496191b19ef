package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/citation"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/retrieval/vectorstore"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/retrieval/websearch"
)

type stubVectorSearcher struct {
	hits []vectorstore.Hit
	err  error
}

func (s stubVectorSearcher) Search(ctx context.Context, queryText string, k int) ([]vectorstore.Hit, error) {
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.hits) {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

type stubWebSearcher struct {
	results []websearch.Result
	err     error
}

func (s stubWebSearcher) Search(ctx context.Context, query string, maxResults int) ([]websearch.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if maxResults < len(s.results) {
		return s.results[:maxResults], nil
	}
	return s.results, nil
}

func TestRetrieveDedupesIdenticalURLAndTitleAcrossOrigins(t *testing.T) {
	vec := stubVectorSearcher{hits: []vectorstore.Hit{
		{ID: "d1", Content: "shared content", Metadata: map[string]string{"title": "Shared Title", "url": "https://x/y"}, Distance: 0.1},
	}}
	web := stubWebSearcher{results: []websearch.Result{
		{URL: "https://x/y", Title: "Shared Title", Snippet: "s", Content: "shared content"},
	}}

	r := New(DefaultConfig(), vec, web, citation.New())
	results, warnings := r.Retrieve(context.Background(), []Question{{ID: "rq1", Text: "q"}}, 10, time.Now().Add(time.Second))
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}

	sources := results["rq1"]
	if len(sources) != 1 {
		t.Fatalf("expected exactly one deduped source, got %d: %+v", len(sources), sources)
	}
	// The web hit is the sole result at rank 0, so its rank-weight score
	// (1.0) beats the vector hit's 1-distance score (0.9); dedup must
	// retain the genuinely higher score regardless of origin.
	if sources[0].RelevanceScore != 1.0 {
		t.Fatalf("expected the higher (web rank-weight) relevance score retained, got %f", sources[0].RelevanceScore)
	}
	if sources[0].Origin != "web" {
		t.Fatalf("expected the surviving record to be the web record, got origin %q", sources[0].Origin)
	}
}

func TestRetrieveDedupesByTitleAndContentWhenURLsDiffer(t *testing.T) {
	vec := stubVectorSearcher{hits: []vectorstore.Hit{
		{ID: "d1", Content: "shared content body", Metadata: map[string]string{"title": "Shared Title", "url": "https://mirror.example/x"}, Distance: 0.6},
	}}
	web := stubWebSearcher{results: []websearch.Result{
		{URL: "https://original.example/x", Title: "Shared Title", Snippet: "s", Content: "shared content body"},
	}}

	r := New(DefaultConfig(), vec, web, citation.New())
	results, _ := r.Retrieve(context.Background(), []Question{{ID: "rq1", Text: "q"}}, 10, time.Now().Add(time.Second))

	sources := results["rq1"]
	if len(sources) != 1 {
		t.Fatalf("expected title/content collision to dedupe across mismatched URLs, got %d: %+v", len(sources), sources)
	}
}

func TestRetrieveAssignsCitationIDsToWebSources(t *testing.T) {
	web := stubWebSearcher{results: []websearch.Result{
		{URL: "https://a", Title: "A", Snippet: "sa"},
		{URL: "https://b", Title: "B", Snippet: "sb"},
	}}
	r := New(DefaultConfig(), stubVectorSearcher{}, web, citation.New())

	results, _ := r.Retrieve(context.Background(), []Question{{ID: "rq1", Text: "q"}}, 10, time.Now().Add(time.Second))
	sources := results["rq1"]
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	for _, s := range sources {
		if s.CitationID == "" {
			t.Fatalf("expected web source to carry a citation id, got %+v", s)
		}
	}
}

func TestRetrieveVectorFailureYieldsWarningAndWebOnlyResults(t *testing.T) {
	vec := stubVectorSearcher{err: errors.New("store unreachable")}
	web := stubWebSearcher{results: []websearch.Result{{URL: "https://a", Title: "A"}}}

	r := New(DefaultConfig(), vec, web, citation.New())
	results, warnings := r.Retrieve(context.Background(), []Question{{ID: "rq1", Text: "q"}}, 10, time.Now().Add(time.Second))

	if len(warnings) != 1 || warnings[0].Origin != "vector" {
		t.Fatalf("expected one vector warning, got %+v", warnings)
	}
	if len(results["rq1"]) != 1 {
		t.Fatalf("expected the web-only result to survive, got %+v", results["rq1"])
	}
}

func TestRetrieveBothOriginsFailYieldsEmptySliceNotNilEntry(t *testing.T) {
	vec := stubVectorSearcher{err: errors.New("down")}
	web := stubWebSearcher{err: errors.New("down")}

	r := New(DefaultConfig(), vec, web, citation.New())
	results, warnings := r.Retrieve(context.Background(), []Question{{ID: "rq1", Text: "q"}}, 10, time.Now().Add(time.Second))

	if len(warnings) != 2 {
		t.Fatalf("expected two warnings, got %+v", warnings)
	}
	sources, ok := results["rq1"]
	if !ok {
		t.Fatalf("expected rq1 to be present in the result map even on total failure")
	}
	if len(sources) != 0 {
		t.Fatalf("expected an empty slice, got %+v", sources)
	}
}

func TestRetrieveTruncatesToMaxSourcesPerQuestion(t *testing.T) {
	web := stubWebSearcher{results: []websearch.Result{
		{URL: "https://a", Title: "A"},
		{URL: "https://b", Title: "B"},
		{URL: "https://c", Title: "C"},
	}}
	r := New(DefaultConfig(), stubVectorSearcher{}, web, citation.New())

	results, _ := r.Retrieve(context.Background(), []Question{{ID: "rq1", Text: "q"}}, 2, time.Now().Add(time.Second))
	if len(results["rq1"]) != 2 {
		t.Fatalf("expected truncation to 2 sources, got %d", len(results["rq1"]))
	}
}

func TestRetrieveNilSearchersYieldEmptyResultsNoPanic(t *testing.T) {
	r := New(DefaultConfig(), nil, nil, citation.New())
	results, warnings := r.Retrieve(context.Background(), []Question{{ID: "rq1", Text: "q"}}, 5, time.Now().Add(time.Second))
	if len(warnings) != 0 {
		t.Fatalf("nil searchers should contribute silently empty results, got warnings %+v", warnings)
	}
	if len(results["rq1"]) != 0 {
		t.Fatalf("expected no sources, got %+v", results["rq1"])
	}
}

func TestRetrieveHandlesMultipleQuestionsIndependently(t *testing.T) {
	web := stubWebSearcher{results: []websearch.Result{{URL: "https://a", Title: "A"}}}
	r := New(DefaultConfig(), stubVectorSearcher{}, web, citation.New())

	questions := []Question{{ID: "rq1", Text: "q1"}, {ID: "rq2", Text: "q2"}, {ID: "rq3", Text: "q3"}}
	results, _ := r.Retrieve(context.Background(), questions, 5, time.Now().Add(time.Second))
	for _, q := range questions {
		if len(results[q.ID]) != 1 {
			t.Fatalf("expected question %s to have one source, got %+v", q.ID, results[q.ID])
		}
	}
}
