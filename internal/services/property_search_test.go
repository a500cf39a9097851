package services

import (
	"fmt"
	"time"

	. "gopkg.in/check.v1"

	"github.com/foxxcyber/property-listing/internal/catalog"
	"github.com/foxxcyber/property-listing/internal/models"
)

type PropertySearchSuite struct {
	catalog []models.Property
}

var _ = Suite(&PropertySearchSuite{})

func (s *PropertySearchSuite) SetUpSuite(c *C) {
	cat, err := catalog.LoadEmbedded()
	c.Assert(err, IsNil)
	c.Assert(cat.Properties, HasLen, 18)
	s.catalog = cat.Properties
}

func propertyIDs(props []models.Property) []int {
	out := make([]int, len(props))
	for i, p := range props {
		out[i] = p.ID
	}
	return out
}

func price(v float64) *float64 { return &v }

func criteriaWith(fn func(c *models.SearchCriteria)) models.SearchCriteria {
	cr := models.DefaultCriteria()
	fn(&cr)
	return cr
}

func syntheticCatalog(n int) []models.Property {
	out := make([]models.Property, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = models.Property{
			ID:        i + 1,
			Title:     fmt.Sprintf("Listing %d", i+1),
			Type:      "Apartment",
			Price:     float64(1000 * (i + 1)),
			Bedrooms:  i % 5,
			DateAdded: base.AddDate(0, 0, i),
		}
	}
	return out
}

func (s *PropertySearchSuite) TestDefaultCriteriaReturnsEverything(c *C) {
	res := Search(s.catalog, models.DefaultCriteria(), nil)
	c.Assert(res.TotalCount, Equals, 18)
	c.Assert(res.TotalPages, Equals, 2)
	c.Assert(res.Page, Equals, 1)
	c.Assert(res.PageSize, Equals, models.PageSize)
	c.Assert(res.Items, HasLen, 12)
}

func (s *PropertySearchSuite) TestPagination(c *C) {
	props := syntheticCatalog(13)

	first := Search(props, models.DefaultCriteria(), nil)
	c.Assert(first.TotalPages, Equals, 2)
	c.Assert(first.Items, HasLen, 12)

	second := Search(props, criteriaWith(func(cr *models.SearchCriteria) { cr.Page = 2 }), nil)
	c.Assert(propertyIDs(second.Items), DeepEquals, []int{13})

	beyond := Search(props, criteriaWith(func(cr *models.SearchCriteria) { cr.Page = 3 }), nil)
	c.Assert(beyond.Items, HasLen, 0)
	c.Assert(beyond.TotalCount, Equals, 13)

	zero := Search(props, criteriaWith(func(cr *models.SearchCriteria) { cr.Page = 0 }), nil)
	c.Assert(zero.Items, HasLen, 0)
}

func (s *PropertySearchSuite) TestPagesReconstructTheSortedList(c *C) {
	cr := criteriaWith(func(cr *models.SearchCriteria) { cr.SortBy = models.SortPriceHigh })

	all := Filter(s.catalog, cr, nil)
	SortProperties(all, cr.SortBy)

	var joined []models.Property
	for page := 1; page <= TotalPages(len(all), models.PageSize); page++ {
		cr.Page = page
		joined = append(joined, Search(s.catalog, cr, nil).Items...)
	}
	c.Assert(propertyIDs(joined), DeepEquals, propertyIDs(all))
}

func (s *PropertySearchSuite) TestEmptyCatalog(c *C) {
	res := Search(nil, models.DefaultCriteria(), nil)
	c.Assert(res.TotalCount, Equals, 0)
	c.Assert(res.TotalPages, Equals, 0)
	c.Assert(res.Items, HasLen, 0)
}

func (s *PropertySearchSuite) TestBedroomFilter(c *C) {
	fourPlus := Filter(s.catalog, criteriaWith(func(cr *models.SearchCriteria) {
		cr.Bedrooms = models.BedroomFilter{AtLeast: true, Count: 4}
	}), nil)
	c.Assert(propertyIDs(fourPlus), DeepEquals, []int{3, 5, 8, 10})

	studios := Filter(s.catalog, criteriaWith(func(cr *models.SearchCriteria) {
		cr.Bedrooms = models.BedroomFilter{Count: 0}
	}), nil)
	c.Assert(propertyIDs(studios), DeepEquals, []int{2, 4, 12, 13})

	three := Filter(s.catalog, criteriaWith(func(cr *models.SearchCriteria) {
		cr.Bedrooms = models.BedroomFilter{Count: 3}
	}), nil)
	c.Assert(propertyIDs(three), DeepEquals, []int{6, 7, 14, 15, 17})
}

func (s *PropertySearchSuite) TestTypeFilter(c *C) {
	villas := Filter(s.catalog, criteriaWith(func(cr *models.SearchCriteria) { cr.Type = "Villa" }), nil)
	c.Assert(propertyIDs(villas), DeepEquals, []int{3})

	all := Filter(s.catalog, criteriaWith(func(cr *models.SearchCriteria) { cr.Type = models.TypeAll }), nil)
	c.Assert(all, HasLen, 18)

	none := Filter(s.catalog, criteriaWith(func(cr *models.SearchCriteria) { cr.Type = "Castle" }), nil)
	c.Assert(none, HasLen, 0)
}

func (s *PropertySearchSuite) TestPriceBounds(c *C) {
	got := Filter(s.catalog, criteriaWith(func(cr *models.SearchCriteria) {
		cr.MinPrice = price(10000)
		cr.MaxPrice = price(20000)
	}), nil)
	c.Assert(propertyIDs(got), DeepEquals, []int{1, 5, 8, 10, 12, 14})

	inclusive := Filter(s.catalog, criteriaWith(func(cr *models.SearchCriteria) {
		cr.MinPrice = price(3900)
		cr.MaxPrice = price(3900)
	}), nil)
	c.Assert(propertyIDs(inclusive), DeepEquals, []int{15})

	inverted := Filter(s.catalog, criteriaWith(func(cr *models.SearchCriteria) {
		cr.MinPrice = price(20000)
		cr.MaxPrice = price(10000)
	}), nil)
	c.Assert(inverted, HasLen, 0)
}

func (s *PropertySearchSuite) TestFavoritesOnly(c *C) {
	cr := criteriaWith(func(cr *models.SearchCriteria) { cr.FavoritesOnly = true })

	c.Assert(Filter(s.catalog, cr, NewStaticFavorites()), HasLen, 0)
	c.Assert(Filter(s.catalog, cr, nil), HasLen, 0)

	got := Filter(s.catalog, cr, NewStaticFavorites("9", "7", "999"))
	c.Assert(propertyIDs(got), DeepEquals, []int{7, 9})
}

func (s *PropertySearchSuite) TestLocationFilter(c *C) {
	loc := func(name string, t models.LocationType) models.SearchCriteria {
		return criteriaWith(func(cr *models.SearchCriteria) {
			cr.Location = &models.Location{ID: name, Name: name, Type: t}
		})
	}

	c.Assert(propertyIDs(Filter(s.catalog, loc("Dubai", models.LocationCity), nil)), DeepEquals, []int{1, 2, 3, 4, 5})
	c.Assert(propertyIDs(Filter(s.catalog, loc("New York City", models.LocationCity), nil)), DeepEquals, []int{7, 8, 9})
	c.Assert(propertyIDs(Filter(s.catalog, loc("Brooklyn", models.LocationArea), nil)), DeepEquals, []int{8, 9})
	// neighborhood only
	c.Assert(propertyIDs(Filter(s.catalog, loc("upper east side", models.LocationArea), nil)), DeepEquals, []int{7})
	c.Assert(Filter(s.catalog, loc("Tokyo", models.LocationCity), nil), HasLen, 0)
}

func (s *PropertySearchSuite) TestMatchesLocationClauses(c *C) {
	p := models.Property{Address: "1 Harbour Road, Springfield", Neighborhood: "Old Town"}

	c.Assert(MatchesLocation(p, models.Location{Name: "springfield", Type: models.LocationCountry}), Equals, true)
	c.Assert(MatchesLocation(p, models.Location{Name: "Old Town", Type: models.LocationCommunity}), Equals, true)
	c.Assert(MatchesLocation(p, models.Location{Name: "Harbour", Type: models.LocationArea}), Equals, true)
	c.Assert(MatchesLocation(p, models.Location{Name: "Shelbyville", Type: models.LocationCity}), Equals, false)
}

func (s *PropertySearchSuite) TestFeaturedSortIsStable(c *C) {
	props := Filter(s.catalog, models.DefaultCriteria(), nil)
	SortProperties(props, models.SortFeatured)
	c.Assert(propertyIDs(props), DeepEquals, []int{1, 3, 7, 8, 10, 14, 2, 4, 5, 6, 9, 11, 12, 13, 15, 16, 17, 18})
}

func (s *PropertySearchSuite) TestPriceSortsAreReverses(c *C) {
	low := Filter(s.catalog, models.DefaultCriteria(), nil)
	SortProperties(low, models.SortPriceLow)
	high := Filter(s.catalog, models.DefaultCriteria(), nil)
	SortProperties(high, models.SortPriceHigh)

	c.Assert(low[0].ID, Equals, 15)
	c.Assert(high[0].ID, Equals, 13)

	for i := range low {
		c.Assert(low[i].ID, Equals, high[len(high)-1-i].ID)
	}
}

func (s *PropertySearchSuite) TestSizeAndNewestSorts(c *C) {
	bySize := Filter(s.catalog, models.DefaultCriteria(), nil)
	SortProperties(bySize, models.SortSize)
	c.Assert(propertyIDs(bySize[:3]), DeepEquals, []int{13, 3, 4})

	newest := Filter(s.catalog, models.DefaultCriteria(), nil)
	SortProperties(newest, models.SortNewest)
	c.Assert(propertyIDs(newest[:5]), DeepEquals, []int{9, 14, 7, 11, 5})
}

func (s *PropertySearchSuite) TestSearchDoesNotMutateCatalog(c *C) {
	before := propertyIDs(s.catalog)
	Search(s.catalog, criteriaWith(func(cr *models.SearchCriteria) { cr.SortBy = models.SortPriceLow }), nil)
	RecentProperties(s.catalog, 3)
	c.Assert(propertyIDs(s.catalog), DeepEquals, before)
}

func (s *PropertySearchSuite) TestFilterOptions(c *C) {
	opts := FilterOptionsFor(s.catalog)
	c.Assert(opts.Types, DeepEquals, []string{"Apartment", "Villa", "Commercial", "Townhouse", "House", "Land"})
	c.Assert(opts.MinPrice, Equals, 3900.0)
	c.Assert(opts.MaxPrice, Equals, 450000.0)
	c.Assert(opts.MaxBedrooms, Equals, 5)
	c.Assert(opts.Total, Equals, 18)

	empty := FilterOptionsFor(nil)
	c.Assert(empty.Types, HasLen, 0)
	c.Assert(empty.Total, Equals, 0)
}

func (s *PropertySearchSuite) TestRecentProperties(c *C) {
	c.Assert(propertyIDs(RecentProperties(s.catalog, 3)), DeepEquals, []int{9, 14, 7})
	c.Assert(RecentProperties(s.catalog, 100), HasLen, 18)
	c.Assert(RecentProperties(s.catalog, 0), HasLen, 0)
}

func (s *PropertySearchSuite) TestSessionResetsPageOnFilterChange(c *C) {
	session := NewSearchSession()
	session.SetPage(2)
	c.Assert(session.Criteria().Page, Equals, 2)

	// same values: page kept
	session.Update(func(cr *models.SearchCriteria) { cr.Type = models.TypeAll })
	c.Assert(session.Criteria().Page, Equals, 2)

	session.Update(func(cr *models.SearchCriteria) { cr.Type = "Apartment" })
	c.Assert(session.Criteria().Page, Equals, 1)

	session.SetPage(2)
	session.Update(func(cr *models.SearchCriteria) { cr.MinPrice = price(5000) })
	c.Assert(session.Criteria().Page, Equals, 1)

	session.SetPage(2)
	session.Update(func(cr *models.SearchCriteria) { cr.SortBy = models.SortNewest })
	c.Assert(session.Criteria().Page, Equals, 1)

	res := session.Run(s.catalog, nil)
	c.Assert(res.TotalCount, Equals, 8)
	c.Assert(res.Items[0].ID, Equals, 9)

	session.Reset()
	c.Assert(session.Criteria(), DeepEquals, models.DefaultCriteria())
}

func (s *PropertySearchSuite) TestTotalPages(c *C) {
	c.Assert(TotalPages(0, 12), Equals, 0)
	c.Assert(TotalPages(1, 12), Equals, 1)
	c.Assert(TotalPages(12, 12), Equals, 1)
	c.Assert(TotalPages(13, 12), Equals, 2)
	c.Assert(TotalPages(25, 12), Equals, 3)
	c.Assert(TotalPages(5, 0), Equals, 0)
}
