package services

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/foxxcyber/property-listing/internal/models"
)

const (
	// MaxLocationMatches bounds the autocomplete list
	MaxLocationMatches = 12
	// PopularCityCount is the size of the default list shown for an empty query
	PopularCityCount = 8
)

// indexedLocation keeps the lower-cased names next to the record so matching
// does not re-fold the dataset on every keystroke
type indexedLocation struct {
	loc    models.Location
	name   string
	parent string
}

// LocationMatcher answers autocomplete queries over a static location list
type LocationMatcher struct {
	entries []indexedLocation
	byID    map[string]int
	popular []models.Location
}

// NewLocationMatcher indexes locations in their declared order
func NewLocationMatcher(locations []models.Location) *LocationMatcher {
	fold := cases.Lower(language.Und)

	m := &LocationMatcher{
		entries: make([]indexedLocation, 0, len(locations)),
		byID:    make(map[string]int, len(locations)),
	}
	for _, loc := range locations {
		m.byID[loc.ID] = len(m.entries)
		m.entries = append(m.entries, indexedLocation{
			loc:    loc,
			name:   fold.String(loc.Name),
			parent: fold.String(loc.ParentName()),
		})
		if loc.Type == models.LocationCity && len(m.popular) < PopularCityCount {
			m.popular = append(m.popular, loc)
		}
	}

	return m
}

// Len returns the number of indexed locations
func (m *LocationMatcher) Len() int {
	return len(m.entries)
}

// ByID looks up a location by its identifier
func (m *LocationMatcher) ByID(id string) (models.Location, bool) {
	i, ok := m.byID[id]
	if !ok {
		return models.Location{}, false
	}
	return m.entries[i].loc, true
}

// Popular returns the first cities of the dataset
func (m *LocationMatcher) Popular() []models.Location {
	out := make([]models.Location, len(m.popular))
	copy(out, m.popular)
	return out
}

// Match returns up to MaxLocationMatches locations whose name or parent name
// contains the query. Names starting with the query come first, then the
// larger hierarchy levels; ties keep dataset order.
func (m *LocationMatcher) Match(query string) []models.Location {
	if strings.TrimSpace(query) == "" {
		return m.Popular()
	}

	q := cases.Lower(language.Und).String(query)

	type candidate struct {
		entry  *indexedLocation
		prefix bool
	}

	var candidates []candidate
	for i := range m.entries {
		e := &m.entries[i]
		if strings.Contains(e.name, q) || (e.parent != "" && strings.Contains(e.parent, q)) {
			candidates = append(candidates, candidate{entry: e, prefix: strings.HasPrefix(e.name, q)})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.prefix != b.prefix {
			return a.prefix
		}
		return a.entry.loc.Type.Rank() < b.entry.loc.Type.Rank()
	})

	if len(candidates) > MaxLocationMatches {
		candidates = candidates[:MaxLocationMatches]
	}

	out := make([]models.Location, len(candidates))
	for i, c := range candidates {
		out[i] = c.entry.loc
	}
	return out
}

// Suggestions wraps Match results with their highlighted names
func (m *LocationMatcher) Suggestions(query string) []models.LocationSuggestion {
	matches := m.Match(query)
	out := make([]models.LocationSuggestion, len(matches))
	for i, loc := range matches {
		out[i] = models.LocationSuggestion{Location: loc, Highlight: Highlight(loc.Name, query)}
	}
	return out
}

// Suggest returns locations whose name is within a small edit distance of
// the query. It is meant for "did you mean" hints when Match finds nothing.
func (m *LocationMatcher) Suggest(query string, limit int) []models.Location {
	q := cases.Lower(language.Und).String(strings.TrimSpace(query))
	qLen := utf8.RuneCountInString(q)
	if qLen < 3 || limit <= 0 {
		return nil
	}

	maxDist := qLen / 3
	if maxDist < 1 {
		maxDist = 1
	}

	type scored struct {
		entry *indexedLocation
		dist  int
	}

	var hits []scored
	for i := range m.entries {
		e := &m.entries[i]
		d := levenshtein.ComputeDistance(q, e.name)
		if prefix := runePrefix(e.name, qLen); prefix != e.name {
			if pd := levenshtein.ComputeDistance(q, prefix); pd < d {
				d = pd
			}
		}
		if d <= maxDist {
			hits = append(hits, scored{entry: e, dist: d})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].entry.loc.Type.Rank() < hits[j].entry.loc.Type.Rank()
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]models.Location, len(hits))
	for i, h := range hits {
		out[i] = h.entry.loc
	}
	return out
}

// Highlight splits text around the first case-insensitive occurrence of
// query, keeping the casing of text. It returns nil when the query is blank
// or does not occur.
func Highlight(text, query string) *models.Highlight {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	n := utf8.RuneCountInString(query)
	for i := range text {
		end := runeOffset(text[i:], n)
		if end < 0 {
			break
		}
		if strings.EqualFold(text[i:i+end], query) {
			return &models.Highlight{
				Before: text[:i],
				Match:  text[i : i+end],
				After:  text[i+end:],
			}
		}
	}

	return nil
}

// runeOffset returns the byte length of the first n runes of s, or -1 when
// s is shorter than n runes
func runeOffset(s string, n int) int {
	off := 0
	for k := 0; k < n; k++ {
		if off >= len(s) {
			return -1
		}
		_, size := utf8.DecodeRuneInString(s[off:])
		off += size
	}
	return off
}

func runePrefix(s string, n int) string {
	if end := runeOffset(s, n); end >= 0 {
		return s[:end]
	}
	return s
}
