package listing

import (
	"slices"
	"time"
)

// StatusAvailable is the status every property starts with. It is the only
// status value the package interprets; any other label is opaque.
const StatusAvailable = "available"

// Details holds the listing attributes supplied by the owner at creation.
type Details struct {
	Location     string   `json:"location"`
	Price        float64  `json:"price"`
	PropertyType string   `json:"property_type"`
	Description  string   `json:"description"`
	Amenities    []string `json:"amenities"`
}

func (d Details) clone() Details {
	d.Amenities = slices.Clone(d.Amenities)
	return d
}

// Property is a stored listing. Values handed out by Store and QueryService
// are copies; mutating them does not affect the store.
type Property struct {
	ID            string
	OwnerID       string
	Details       Details
	Status        string
	ShortlistedBy []string
	CreatedAt     time.Time
}

// IsAvailable reports whether the property still carries the initial status.
func (p Property) IsAvailable() bool {
	return p.Status == StatusAvailable
}

// IsShortlistedBy reports whether userID has shortlisted the property.
func (p Property) IsShortlistedBy(userID string) bool {
	return slices.Contains(p.ShortlistedBy, userID)
}

func (p *Property) snapshot() Property {
	out := *p
	out.Details = p.Details.clone()
	out.ShortlistedBy = slices.Clone(p.ShortlistedBy)
	return out
}

// View is the externally visible projection of a Property. Owner and
// creation time stay internal.
type View struct {
	PropertyID string      `json:"property_id"`
	Details    ViewDetails `json:"details"`
	Status     string      `json:"status"`
}

// ViewDetails flattens the listing attributes together with the shortlist.
type ViewDetails struct {
	Details
	ShortlistedBy []string `json:"shortlisted_by,omitempty"`
}

// View projects p for callers.
func (p Property) View() View {
	return View{
		PropertyID: p.ID,
		Details: ViewDetails{
			Details:       p.Details,
			ShortlistedBy: p.ShortlistedBy,
		},
		Status: p.Status,
	}
}

// Views projects a slice of properties, preserving order.
func Views(props []Property) []View {
	out := make([]View, 0, len(props))
	for _, p := range props {
		out = append(out, p.View())
	}
	return out
}

// Criteria is a partial search filter. Nil bounds and empty strings impose
// no constraint.
type Criteria struct {
	MinPrice     *float64
	MaxPrice     *float64
	Location     string
	PropertyType string
}

// Matches reports whether p satisfies every present criterion.
func (c Criteria) Matches(p Property) bool {
	if c.MinPrice != nil && p.Details.Price < *c.MinPrice {
		return false
	}
	if c.MaxPrice != nil && p.Details.Price > *c.MaxPrice {
		return false
	}
	if c.Location != "" && p.Details.Location != c.Location {
		return false
	}
	if c.PropertyType != "" && p.Details.PropertyType != c.PropertyType {
		return false
	}
	return true
}
