package services

import (
	"sort"
	"strings"

	"github.com/foxxcyber/property-listing/internal/models"
)

// FavoriteSet answers membership queries for the favorites-only filter
type FavoriteSet interface {
	Contains(id string) bool
}

// StaticFavorites is a FavoriteSet backed by a plain map
type StaticFavorites map[string]struct{}

// NewStaticFavorites builds a set from ids
func NewStaticFavorites(ids ...string) StaticFavorites {
	s := make(StaticFavorites, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains implements FavoriteSet
func (s StaticFavorites) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Search filters, sorts and paginates the catalog. It never fails: an
// out-of-range page yields an empty page with the correct totals.
func Search(catalog []models.Property, criteria models.SearchCriteria, favorites FavoriteSet) models.SearchResult {
	filtered := Filter(catalog, criteria, favorites)
	SortProperties(filtered, criteria.SortBy)

	return models.SearchResult{
		Items:      Paginate(filtered, criteria.Page, models.PageSize),
		TotalCount: len(filtered),
		TotalPages: TotalPages(len(filtered), models.PageSize),
		Page:       criteria.Page,
		PageSize:   models.PageSize,
	}
}

// Filter returns a new slice with the properties that pass every active
// filter, in catalog order
func Filter(catalog []models.Property, criteria models.SearchCriteria, favorites FavoriteSet) []models.Property {
	out := make([]models.Property, 0, len(catalog))
	for _, p := range catalog {
		if matchesCriteria(p, criteria, favorites) {
			out = append(out, p)
		}
	}
	return out
}

func matchesCriteria(p models.Property, c models.SearchCriteria, favorites FavoriteSet) bool {
	if c.Location != nil && !MatchesLocation(p, *c.Location) {
		return false
	}

	if c.Type != "" && c.Type != models.TypeAll && p.Type != c.Type {
		return false
	}

	if c.MinPrice != nil && p.Price < *c.MinPrice {
		return false
	}
	if c.MaxPrice != nil && p.Price > *c.MaxPrice {
		return false
	}

	if !c.Bedrooms.Matches(p.Bedrooms) {
		return false
	}

	if c.FavoritesOnly && (favorites == nil || !favorites.Contains(p.Key())) {
		return false
	}

	return true
}

// MatchesLocation is the textual location filter. The city and area clauses
// overlap with the plain address and neighborhood clauses; all four are kept.
func MatchesLocation(p models.Property, loc models.Location) bool {
	name := strings.ToLower(loc.Name)
	address := strings.ToLower(p.Address)
	neighborhood := strings.ToLower(p.Neighborhood)

	return strings.Contains(address, name) ||
		strings.Contains(neighborhood, name) ||
		(loc.Type == models.LocationCity && strings.Contains(address, name)) ||
		(loc.Type == models.LocationArea && strings.Contains(neighborhood, name))
}

// SortProperties orders properties in place. The sort is stable so equal
// keys keep their filter order.
func SortProperties(props []models.Property, key models.SortKey) {
	var less func(a, b *models.Property) bool

	switch key {
	case models.SortPriceLow:
		less = func(a, b *models.Property) bool { return a.Price < b.Price }
	case models.SortPriceHigh:
		less = func(a, b *models.Property) bool { return a.Price > b.Price }
	case models.SortSize:
		less = func(a, b *models.Property) bool { return a.SquareMeters > b.SquareMeters }
	case models.SortNewest:
		less = func(a, b *models.Property) bool { return a.DateAdded.After(b.DateAdded) }
	default:
		less = func(a, b *models.Property) bool { return a.Featured && !b.Featured }
	}

	sort.SliceStable(props, func(i, j int) bool { return less(&props[i], &props[j]) })
}

// TotalPages returns ceil(count / size)
func TotalPages(count, size int) int {
	if size <= 0 || count <= 0 {
		return 0
	}
	return (count + size - 1) / size
}

// Paginate returns the 1-based page of items. Pages outside
// [1, TotalPages] are empty.
func Paginate[T any](items []T, page, size int) []T {
	if page < 1 || size <= 0 {
		return []T{}
	}

	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}

	end := start + size
	if end > len(items) {
		end = len(items)
	}

	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

// FilterOptionsFor summarizes the catalog for the filter panel
func FilterOptionsFor(catalog []models.Property) models.FilterOptions {
	opts := models.FilterOptions{Types: []string{}, Total: len(catalog)}
	seen := make(map[string]bool)

	for i, p := range catalog {
		if p.Type != "" && !seen[p.Type] {
			seen[p.Type] = true
			opts.Types = append(opts.Types, p.Type)
		}
		if i == 0 || p.Price < opts.MinPrice {
			opts.MinPrice = p.Price
		}
		if p.Price > opts.MaxPrice {
			opts.MaxPrice = p.Price
		}
		if p.Bedrooms > opts.MaxBedrooms {
			opts.MaxBedrooms = p.Bedrooms
		}
	}

	return opts
}

// RecentProperties returns the newest properties first
func RecentProperties(catalog []models.Property, limit int) []models.Property {
	props := make([]models.Property, len(catalog))
	copy(props, catalog)
	SortProperties(props, models.SortNewest)

	if limit >= 0 && len(props) > limit {
		props = props[:limit]
	}
	return props
}

// SearchSession holds the criteria of one search form. Changing any filter
// sends the user back to the first page.
type SearchSession struct {
	criteria models.SearchCriteria
}

// NewSearchSession starts a session with default criteria
func NewSearchSession() *SearchSession {
	return &SearchSession{criteria: models.DefaultCriteria()}
}

// Criteria returns a copy of the current criteria
func (s *SearchSession) Criteria() models.SearchCriteria {
	return s.criteria
}

// Update applies fn to the criteria and resets the page to 1 when any
// filter or the sort order changed
func (s *SearchSession) Update(fn func(c *models.SearchCriteria)) {
	before := s.criteria
	fn(&s.criteria)

	if filtersChanged(before, s.criteria) {
		s.criteria.Page = 1
	}
}

// SetPage moves to another page without touching the filters
func (s *SearchSession) SetPage(page int) {
	s.criteria.Page = page
}

// Reset clears every filter
func (s *SearchSession) Reset() {
	s.criteria = models.DefaultCriteria()
}

// Run executes the search for the current criteria
func (s *SearchSession) Run(catalog []models.Property, favorites FavoriteSet) models.SearchResult {
	return Search(catalog, s.criteria, favorites)
}

func filtersChanged(a, b models.SearchCriteria) bool {
	return locationID(a.Location) != locationID(b.Location) ||
		a.Type != b.Type ||
		!samePrice(a.MinPrice, b.MinPrice) ||
		!samePrice(a.MaxPrice, b.MaxPrice) ||
		a.Bedrooms != b.Bedrooms ||
		a.FavoritesOnly != b.FavoritesOnly ||
		a.SortBy != b.SortBy
}

func locationID(l *models.Location) string {
	if l == nil {
		return ""
	}
	return l.ID
}

func samePrice(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
