package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/foxxcyber/property-listing/internal/models"
)

// maxSuggestions bounds the "did you mean" list
const maxSuggestions = 5

// SearchLocations returns autocomplete matches for the location input.
// A blank query returns the popular cities.
func (h *Handler) SearchLocations(c *fiber.Ctx) error {
	query := c.Query("q")
	if len([]rune(query)) > 200 {
		return Error(c, fiber.StatusBadRequest, "q must be at most 200 characters")
	}

	result := models.LocationSearchResult{
		Query:       query,
		Popular:     strings.TrimSpace(query) == "",
		Locations:   h.matcher.Suggestions(query),
		GeneratedAt: h.now().UTC(),
	}

	if len(result.Locations) == 0 && !result.Popular {
		result.DidYouMean = h.matcher.Suggest(query, maxSuggestions)
	}

	return Success(c, result)
}

// PopularLocations returns the locations shown before the user types
func (h *Handler) PopularLocations(c *fiber.Ctx) error {
	return Success(c, h.matcher.Popular())
}

// GetLocation returns a single location by ID
func (h *Handler) GetLocation(c *fiber.Ctx) error {
	loc, ok := h.matcher.ByID(c.Params("id"))
	if !ok {
		return Error(c, fiber.StatusNotFound, "location not found")
	}

	return Success(c, loc)
}
