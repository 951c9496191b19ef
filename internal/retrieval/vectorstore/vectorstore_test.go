package vectorstore

import (
	"context"
	"math"
	"testing"
)

// stubEmbedder returns a deterministic unit vector derived from the
// text's length so cosine distance between distinct inputs is stable and
// testable without a live embedding API.
type stubEmbedder struct {
	dims int
}

func (s stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = unitVectorFor(t, s.dims)
	}
	return out, nil
}

func unitVectorFor(text string, dims int) []float32 {
	v := make([]float32, dims)
	seed := 0
	for _, r := range text {
		seed += int(r)
	}
	v[seed%dims] = 1.0
	return v
}

func TestAddDocumentsAndSearchRanksByDistance(t *testing.T) {
	store, err := Open(Config{DBPath: ":memory:", Dimensions: 8}, stubEmbedder{dims: 8})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	err = store.AddDocuments(ctx,
		[]string{"doc1", "doc2"},
		[]string{"alpha content", "beta content"},
		[]map[string]string{{"source": "alpha"}, {"source": "beta"}},
	)
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	hits, err := store.Search(ctx, "alpha content", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatalf("expected at least one hit")
	}
	if hits[0].ID != "doc1" {
		t.Fatalf("expected doc1 (identical query text) to rank first, got %+v", hits)
	}
	if hits[0].Distance > 1e-6 {
		t.Fatalf("expected near-zero distance for identical text, got %f", hits[0].Distance)
	}
	if math.IsNaN(hits[0].Distance) {
		t.Fatalf("distance must not be NaN")
	}
	if hits[0].Metadata["source"] != "alpha" {
		t.Fatalf("expected metadata to round-trip, got %+v", hits[0].Metadata)
	}
}

func TestAddDocumentsRejectsMismatchedLengths(t *testing.T) {
	store, err := Open(Config{DBPath: ":memory:", Dimensions: 4}, stubEmbedder{dims: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	err = store.AddDocuments(context.Background(), []string{"a", "b"}, []string{"only one"}, nil)
	if err == nil {
		t.Fatalf("expected a length-mismatch error")
	}
}

func TestSearchOnEmptyStoreReturnsNoHits(t *testing.T) {
	store, err := Open(Config{DBPath: ":memory:", Dimensions: 4}, stubEmbedder{dims: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	hits, err := store.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits on empty store, got %+v", hits)
	}
}
