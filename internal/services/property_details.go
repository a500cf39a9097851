package services

import (
	"fmt"
	"time"

	"github.com/foxxcyber/property-listing/internal/models"
)

// ContactMessage is the text prefilled in the inquiry form
func ContactMessage(p models.Property) string {
	return fmt.Sprintf("Hi, I'm interested in the property \"%s\" at %s. Please contact me with more information.", p.Title, p.Address)
}

// PropertyDetailsFor builds the detail page payload
func PropertyDetailsFor(p models.Property, favorites FavoriteSet) models.PropertyDetails {
	return models.PropertyDetails{
		Property:       p,
		MainImage:      p.MainImage(),
		IsFavorite:     favorites != nil && favorites.Contains(p.Key()),
		ContactMessage: ContactMessage(p),
	}
}

// NewInquiry records a contact form submission addressed to the listing agent
func NewInquiry(p models.Property, req models.InquiryRequest, now func() time.Time) models.Inquiry {
	msg := req.Message
	if msg == "" {
		msg = ContactMessage(p)
	}
	return models.Inquiry{
		PropertyID: p.ID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Message:    msg,
		AgentEmail: p.Agent.Email,
		ReceivedAt: now().UTC(),
	}
}
