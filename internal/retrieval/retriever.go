// Package retrieval implements EvidenceRetriever (spec.md §4.3): per
// research-question fanout to the vector store and web search, dedup,
// ranking, capping, and citation assignment. Bounded fanout is
// implemented with golang.org/x/sync/errgroup, grounded on the pack's
// theRebelliousNerd-codenerd internal/campaign.IntelligenceGatherer.
package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/citation"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/logging"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/retrieval/vectorstore"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/retrieval/websearch"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

// Question is the minimal shape EvidenceRetriever needs from a
// plan.research_questions entry.
type Question struct {
	ID   string
	Text string
}

// Config holds the knobs spec.md §4.3/§6 expose.
type Config struct {
	VectorK            int // default 5
	WebK               int // default 5
	ContentCharCap     int // vector-hit content truncation cap, default 2000
	MaxOutboundFanout  int // default 4
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{VectorK: 5, WebK: 5, ContentCharCap: 2000, MaxOutboundFanout: 4}
}

// Retriever implements EvidenceRetriever.
type Retriever struct {
	cfg        Config
	vectors    vectorstore.Searcher
	web        websearch.Searcher
	citations  *citation.Registry
}

// New builds a Retriever. vectors or web may be nil, in which case that
// origin always contributes an empty result set plus a warning, matching
// spec.md §4.3's fault-tolerance requirement.
func New(cfg Config, vectors vectorstore.Searcher, web websearch.Searcher, citations *citation.Registry) *Retriever {
	if cfg.VectorK <= 0 {
		cfg.VectorK = 5
	}
	if cfg.WebK <= 0 {
		cfg.WebK = 5
	}
	if cfg.ContentCharCap <= 0 {
		cfg.ContentCharCap = 2000
	}
	if cfg.MaxOutboundFanout <= 0 {
		cfg.MaxOutboundFanout = 4
	}
	return &Retriever{cfg: cfg, vectors: vectors, web: web, citations: citations}
}

// Warning is a non-fatal per-question retrieval failure, recorded but
// never raised.
type Warning struct {
	QuestionID string
	Origin     string
	Err        error
}

// Retrieve implements EvidenceRetriever.retrieve. It never returns an
// error; failures surface as Warnings alongside a (possibly degraded)
// result map.
func (r *Retriever) Retrieve(ctx context.Context, questions []Question, maxSourcesPerQuestion int, deadline time.Time) (map[string][]state.SourceRecord, []Warning) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	results := make(map[string][]state.SourceRecord, len(questions))
	var warningsMu sync.Mutex
	var warnings []Warning

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.cfg.MaxOutboundFanout)

	var resultsMu sync.Mutex
	for _, q := range questions {
		q := q
		eg.Go(func() error {
			sources, qWarnings := r.retrieveOne(egCtx, q, maxSourcesPerQuestion)

			resultsMu.Lock()
			results[q.ID] = sources
			resultsMu.Unlock()

			if len(qWarnings) > 0 {
				warningsMu.Lock()
				warnings = append(warnings, qWarnings...)
				warningsMu.Unlock()
			}
			return nil
		})
	}

	// eg.Wait never returns an error here: retrieveOne never returns one.
	_ = eg.Wait()

	for _, q := range questions {
		if _, ok := results[q.ID]; !ok {
			results[q.ID] = []state.SourceRecord{}
		}
	}

	return results, warnings
}

func (r *Retriever) retrieveOne(ctx context.Context, q Question, maxSources int) ([]state.SourceRecord, []Warning) {
	var warnings []Warning
	var vectorRecords, webRecords []state.SourceRecord

	inner, _ := errgroup.WithContext(ctx)
	inner.SetLimit(2)

	var mu sync.Mutex
	inner.Go(func() error {
		recs, err := r.queryVector(ctx, q)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			warnings = append(warnings, Warning{QuestionID: q.ID, Origin: "vector", Err: err})
			logging.Warn("vector retrieval failed", "question_id", q.ID, "error", err)
			return nil
		}
		vectorRecords = recs
		return nil
	})
	inner.Go(func() error {
		recs, err := r.queryWeb(ctx, q)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			warnings = append(warnings, Warning{QuestionID: q.ID, Origin: "web", Err: err})
			logging.Warn("web retrieval failed", "question_id", q.ID, "error", err)
			return nil
		}
		webRecords = recs
		return nil
	})
	_ = inner.Wait()

	merged := dedupeAndRank(vectorRecords, webRecords)
	if len(merged) > maxSources {
		merged = merged[:maxSources]
	}
	return merged, warnings
}

func (r *Retriever) queryVector(ctx context.Context, q Question) ([]state.SourceRecord, error) {
	if r.vectors == nil {
		return nil, nil
	}
	hits, err := r.vectors.Search(ctx, q.Text, r.cfg.VectorK)
	if err != nil {
		return nil, err
	}

	out := make([]state.SourceRecord, 0, len(hits))
	for _, h := range hits {
		content := h.Content
		if len(content) > r.cfg.ContentCharCap {
			content = content[:r.cfg.ContentCharCap]
		}
		out = append(out, state.SourceRecord{
			Origin:         "vector",
			Title:          h.Metadata["title"],
			URL:            h.Metadata["url"],
			Content:        content,
			RelevanceScore: 1 - h.Distance,
		})
	}
	return out, nil
}

func (r *Retriever) queryWeb(ctx context.Context, q Question) ([]state.SourceRecord, error) {
	if r.web == nil {
		return nil, nil
	}
	hits, err := r.web.Search(ctx, q.Text, r.cfg.WebK)
	if err != nil {
		return nil, err
	}

	k := r.cfg.WebK
	out := make([]state.SourceRecord, 0, len(hits))
	for i, h := range hits {
		rankWeight := 1 - float64(i)/float64(k)
		rec := state.SourceRecord{
			Origin:         "web",
			Title:          h.Title,
			URL:            h.URL,
			Content:        h.Content,
			Snippet:        h.Snippet,
			RelevanceScore: rankWeight,
		}
		if r.citations != nil {
			c := r.citations.Register(h.Title, h.URL, "web")
			rec.CitationID = c.ID
		}
		out = append(out, rec)
	}
	return out, nil
}

// dedupeAndRank implements spec.md §4.3 steps 3-4: dedup by URL and by
// (title, first 200 chars of content), either key shared across origins,
// keeping the higher relevance_score on conflict, then sort by
// relevance_score descending, stable with vector before web on ties.
//
// A record is indexed under both of its keys (when present) so a web hit
// and a vector hit that share a URL collide even if their titles differ
// in case or whitespace, and conversely a pair that shares a title and
// content but carries no URL (or different URLs) still collides.
func dedupeAndRank(vectorRecords, webRecords []state.SourceRecord) []state.SourceRecord {
	type keyed struct {
		rec state.SourceRecord
		seq int // assignment order; used only for the stable tie-break
	}

	entries := make([]keyed, 0, len(vectorRecords)+len(webRecords))
	byURL := map[string]int{}
	byTitleContent := map[string]int{}
	seq := 0

	add := func(rec state.SourceRecord) {
		urlKey, tcKey := dedupeKeys(rec)

		idx, found := -1, false
		if urlKey != "" {
			idx, found = byURL[urlKey]
		}
		if !found && tcKey != "" {
			idx, found = byTitleContent[tcKey]
		}

		if !found {
			entries = append(entries, keyed{rec: rec, seq: seq})
			idx = len(entries) - 1
		} else if rec.RelevanceScore > entries[idx].rec.RelevanceScore {
			entries[idx] = keyed{rec: rec, seq: seq}
		}

		if urlKey != "" {
			byURL[urlKey] = idx
		}
		if tcKey != "" {
			byTitleContent[tcKey] = idx
		}
		seq++
	}

	for _, rec := range vectorRecords {
		add(rec)
	}
	for _, rec := range webRecords {
		add(rec)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].rec.RelevanceScore != entries[j].rec.RelevanceScore {
			return entries[i].rec.RelevanceScore > entries[j].rec.RelevanceScore
		}
		iVector := entries[i].rec.Origin == "vector"
		jVector := entries[j].rec.Origin == "vector"
		if iVector != jVector {
			return iVector
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]state.SourceRecord, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}

// dedupeKeys returns rec's URL key and title/content key, either of which
// may be empty. urlKey is empty when rec carries no URL; tcKey is always
// populated (vector hits and web hits alike carry a title).
func dedupeKeys(rec state.SourceRecord) (urlKey, tcKey string) {
	if rec.URL != "" {
		urlKey = "url:" + rec.URL
	}
	content := rec.Content
	if len(content) > 200 {
		content = content[:200]
	}
	tcKey = "tc:" + rec.Title + "|" + strings.TrimSpace(content)
	return urlKey, tcKey
}
