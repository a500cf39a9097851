package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/foxxcyber/property-listing/internal/middleware"
	"github.com/foxxcyber/property-listing/internal/models"
	"github.com/foxxcyber/property-listing/internal/services"
)

const (
	defaultRecentLimit = 6
	maxRecentLimit     = 50
	defaultNearbyLimit = 10
	maxNearbyLimit     = 50
)

// SearchProperties returns one page of the filtered and sorted catalog
func (h *Handler) SearchProperties(c *fiber.Ctx) error {
	criteria, err := h.parseCriteria(c)
	if err != nil {
		return err
	}

	favorites, err := h.favoriteSetFor(c, criteria)
	if err != nil {
		return err
	}

	result := services.Search(h.catalog.Properties, criteria, favorites)
	return SuccessWithMeta(c, result.Items, result.TotalCount, result.Page, result.PageSize, result.TotalPages)
}

// PropertyMap returns map markers for every property matching the filters
func (h *Handler) PropertyMap(c *fiber.Ctx) error {
	criteria, err := h.parseCriteria(c)
	if err != nil {
		return err
	}

	favorites, err := h.favoriteSetFor(c, criteria)
	if err != nil {
		return err
	}

	props := services.Filter(h.catalog.Properties, criteria, favorites)
	services.SortProperties(props, criteria.SortBy)

	return Success(c, services.BuildMapView(props))
}

// PropertyFilters returns the values offered by the filter panel
func (h *Handler) PropertyFilters(c *fiber.Ctx) error {
	return Success(c, services.FilterOptionsFor(h.catalog.Properties))
}

// RecentProperties returns the newest listings
func (h *Handler) RecentProperties(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultRecentLimit)
	if limit < 1 || limit > maxRecentLimit {
		limit = defaultRecentLimit
	}

	return Success(c, services.RecentProperties(h.catalog.Properties, limit))
}

// GetProperty returns the detail page payload of a property
func (h *Handler) GetProperty(c *fiber.Ctx) error {
	p, err := h.lookupProperty(c)
	if err != nil {
		return err
	}

	favorites, err := h.favorites.Set(c.UserContext(), middleware.GetClientID(c))
	if err != nil {
		return h.favoritesError(c, err)
	}

	return Success(c, services.PropertyDetailsFor(p, favorites))
}

// NearbyProperties returns other listings around a property
func (h *Handler) NearbyProperties(c *fiber.Ctx) error {
	p, err := h.lookupProperty(c)
	if err != nil {
		return err
	}

	radius := services.DefaultNearbyRadiusKm
	if raw := c.Query("radius_km"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 || radius > services.MaxNearbyRadiusKm {
			return Error(c, fiber.StatusBadRequest, "radius_km must be between 0 and 50")
		}
	}

	limit := c.QueryInt("limit", defaultNearbyLimit)
	if limit < 1 || limit > maxNearbyLimit {
		limit = defaultNearbyLimit
	}

	return Success(c, services.NearbyProperties(h.catalog.Properties, p, radius, limit))
}

// CreateInquiry accepts a contact form submission. Inquiries are logged for
// the agent and not stored.
func (h *Handler) CreateInquiry(c *fiber.Ctx) error {
	p, err := h.lookupProperty(c)
	if err != nil {
		return err
	}

	var req models.InquiryRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return Error(c, fiber.StatusBadRequest, validationMessage(err))
	}

	inquiry := services.NewInquiry(p, req, h.now)
	h.logger.Info("inquiry received",
		"property_id", inquiry.PropertyID,
		"agent_email", inquiry.AgentEmail,
		"client_id", middleware.GetClientID(c),
	)

	return c.Status(fiber.StatusAccepted).JSON(APIResponse{
		Success: true,
		Data:    inquiry,
	})
}

func (h *Handler) lookupProperty(c *fiber.Ctx) (models.Property, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return models.Property{}, fiber.NewError(fiber.StatusBadRequest, "invalid property id")
	}

	p, ok := h.catalog.Property(id)
	if !ok {
		return models.Property{}, fiber.NewError(fiber.StatusNotFound, "property not found")
	}
	return p, nil
}

// parseCriteria reads the search form from the query string
func (h *Handler) parseCriteria(c *fiber.Ctx) (models.SearchCriteria, error) {
	var params models.SearchParams
	if err := c.QueryParser(&params); err != nil {
		return models.SearchCriteria{}, fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")
	}
	if err := h.validate.Struct(params); err != nil {
		return models.SearchCriteria{}, fiber.NewError(fiber.StatusBadRequest, validationMessage(err))
	}

	criteria := models.DefaultCriteria()
	criteria.LocationQuery = params.Query
	criteria.FavoritesOnly = params.FavoritesOnly

	if params.LocationID != "" {
		loc, ok := h.matcher.ByID(params.LocationID)
		if !ok {
			return models.SearchCriteria{}, fiber.NewError(fiber.StatusBadRequest, "unknown location_id")
		}
		criteria.Location = &loc
		if criteria.LocationQuery == "" {
			criteria.LocationQuery = loc.Name
		}
	}

	if params.Type != "" {
		criteria.Type = params.Type
	}

	var err error
	if criteria.MinPrice, err = models.ParsePriceBound(params.MinPrice); err != nil {
		return models.SearchCriteria{}, fiber.NewError(fiber.StatusBadRequest, "min_price must be a non-negative number")
	}
	if criteria.MaxPrice, err = models.ParsePriceBound(params.MaxPrice); err != nil {
		return models.SearchCriteria{}, fiber.NewError(fiber.StatusBadRequest, "max_price must be a non-negative number")
	}
	if criteria.Bedrooms, err = models.ParseBedroomFilter(params.Bedrooms); err != nil {
		return models.SearchCriteria{}, fiber.NewError(fiber.StatusBadRequest, "bedrooms must be all, a count, or 4+")
	}
	if criteria.SortBy, err = models.ParseSortKey(params.Sort); err != nil {
		return models.SearchCriteria{}, fiber.NewError(fiber.StatusBadRequest, "unknown sort order")
	}

	if params.Page > 0 {
		criteria.Page = params.Page
	}

	return criteria, nil
}

// favoriteSetFor loads the caller's favorites only when the search needs them
func (h *Handler) favoriteSetFor(c *fiber.Ctx, criteria models.SearchCriteria) (services.FavoriteSet, error) {
	if !criteria.FavoritesOnly {
		return nil, nil
	}

	favorites, err := h.favorites.Set(c.UserContext(), middleware.GetClientID(c))
	if err != nil {
		return nil, h.favoritesError(c, err)
	}
	return favorites, nil
}
