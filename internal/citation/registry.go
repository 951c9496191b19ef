// Package citation implements CitationRegistry, the per-run allocator of
// unique citation ids attached to web-search evidence, plus the
// bibliography formatting, validation, and statistics a finished run
// surfaces alongside its final artifact. It is sequentially mutated by
// Grounder only; no locking is required because the pipeline never runs
// Grounder concurrently with itself.
package citation

import (
	"encoding/json"
	"fmt"
	neturl "net/url"
	"sort"
	"strings"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

// Registry owns citation allocation for a single run.
type Registry struct {
	next  int
	byID  map[string]*state.Citation
	order []string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byID: map[string]*state.Citation{}}
}

// Register allocates a new citation id for a web-search hit and returns the
// populated Citation. AccessedDate is stamped at registration time; Publisher
// is inferred from url's host when present.
func (r *Registry) Register(title, url, sourceType string) *state.Citation {
	r.next++
	id := fmt.Sprintf("c%d", r.next)
	c := &state.Citation{
		ID:           id,
		Title:        title,
		URL:          url,
		AccessedDate: time.Now(),
		SourceType:   sourceType,
		Publisher:    publisherFromURL(url),
	}
	r.byID[id] = c
	r.order = append(r.order, id)
	return c
}

// publisherFromURL derives a human-readable publisher name from a citation's
// URL host, e.g. "https://www.nature.com/articles/x" -> "nature.com".
func publisherFromURL(raw string) string {
	u, err := neturl.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}

// Get looks up a previously registered citation by id.
func (r *Registry) Get(id string) (*state.Citation, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// All returns every registered citation in registration order.
func (r *Registry) All() []*state.Citation {
	out := make([]*state.Citation, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len reports how many citations have been registered.
func (r *Registry) Len() int {
	return len(r.order)
}

// BibliographyStyle selects FormatBibliography's rendering.
type BibliographyStyle string

const (
	StyleAPA   BibliographyStyle = "apa"
	StyleIEEE  BibliographyStyle = "ieee"
	StyleMLA   BibliographyStyle = "mla"
	StylePlain BibliographyStyle = "plain"
)

// FormatBibliography renders every registered citation as a numbered
// bibliography in the given style, one entry per line. An unrecognized
// style falls back to StylePlain.
func (r *Registry) FormatBibliography(style BibliographyStyle) string {
	var b strings.Builder
	for i, id := range r.order {
		c := r.byID[id]
		fmt.Fprintf(&b, "[%d] %s\n", i+1, formatCitation(c, style))
	}
	return b.String()
}

func formatCitation(c *state.Citation, style BibliographyStyle) string {
	authors := strings.Join(c.Authors, ", ")
	year := c.PublicationDate
	if year == "" {
		year = "n.d."
	}

	switch style {
	case StyleAPA:
		if authors == "" {
			return fmt.Sprintf("%s (%s). %s. %s", c.Title, year, c.Publisher, c.URL)
		}
		return fmt.Sprintf("%s. (%s). %s. %s. %s", authors, year, c.Title, c.Publisher, c.URL)
	case StyleIEEE:
		if authors == "" {
			return fmt.Sprintf("\"%s,\" %s, %s. [Online]. Available: %s", c.Title, c.Publisher, year, c.URL)
		}
		return fmt.Sprintf("%s, \"%s,\" %s, %s. [Online]. Available: %s", authors, c.Title, c.Publisher, year, c.URL)
	case StyleMLA:
		if authors == "" {
			return fmt.Sprintf("\"%s.\" %s, %s, %s.", c.Title, c.Publisher, year, c.URL)
		}
		return fmt.Sprintf("%s. \"%s.\" %s, %s, %s.", authors, c.Title, c.Publisher, year, c.URL)
	default:
		return fmt.Sprintf("%s — %s (%s) %s", c.Title, c.Publisher, year, c.URL)
	}
}

// ValidationSeverity grades how serious a ValidationIssue is.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue flags one defect found on one citation.
type ValidationIssue struct {
	CitationID string
	Severity   ValidationSeverity
	Message    string
}

// genericTitles are placeholder titles a web-search hit can surface when
// the page itself failed to supply one.
var genericTitles = map[string]bool{
	"untitled": true, "no title": true, "": true, "home": true,
}

// Validate inspects every registered citation and reports missing or
// generic titles, missing URLs, and non-http(s) URLs. Titles and schemes
// are the same checks citation_manager.py's validator performs.
func (r *Registry) Validate() []ValidationIssue {
	var issues []ValidationIssue
	for _, id := range r.order {
		c := r.byID[id]
		if genericTitles[strings.ToLower(strings.TrimSpace(c.Title))] {
			issues = append(issues, ValidationIssue{CitationID: c.ID, Severity: SeverityWarning, Message: "missing or generic title"})
		}
		if c.URL == "" {
			issues = append(issues, ValidationIssue{CitationID: c.ID, Severity: SeverityError, Message: "missing url"})
			continue
		}
		u, err := neturl.Parse(c.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			issues = append(issues, ValidationIssue{CitationID: c.ID, Severity: SeverityError, Message: "url is not http(s)"})
		}
	}
	return issues
}

// PublisherCount is one entry of Stats.TopPublishers.
type PublisherCount struct {
	Publisher string
	Count     int
}

// Stats summarizes the registry's composition: a histogram of source types
// and the five most frequently cited publishers.
type Stats struct {
	Total         int
	BySourceType  map[string]int
	TopPublishers []PublisherCount
}

// Stats computes Stats over every registered citation.
func (r *Registry) Stats() Stats {
	bySourceType := map[string]int{}
	byPublisher := map[string]int{}
	for _, id := range r.order {
		c := r.byID[id]
		bySourceType[c.SourceType]++
		if c.Publisher != "" {
			byPublisher[c.Publisher]++
		}
	}

	publishers := make([]PublisherCount, 0, len(byPublisher))
	for p, n := range byPublisher {
		publishers = append(publishers, PublisherCount{Publisher: p, Count: n})
	}
	sort.Slice(publishers, func(i, j int) bool {
		if publishers[i].Count != publishers[j].Count {
			return publishers[i].Count > publishers[j].Count
		}
		return publishers[i].Publisher < publishers[j].Publisher
	})
	if len(publishers) > 5 {
		publishers = publishers[:5]
	}

	return Stats{Total: len(r.order), BySourceType: bySourceType, TopPublishers: publishers}
}

// ExportJSON serializes every registered citation, in registration order,
// as a JSON array.
func (r *Registry) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(r.All(), "", "  ")
}
