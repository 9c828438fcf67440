package listing

import "errors"

// ErrAlreadyShortlisted signals that the user already shortlisted the property.
var ErrAlreadyShortlisted = errors.New("listing: property already shortlisted")

// QueryService answers cross-cutting queries and keeps shortlists. It holds
// no state of its own and always reads the store's live records.
type QueryService struct {
	store *Store
}

// NewQueryService builds a QueryService over store.
func NewQueryService(store *Store) *QueryService {
	return &QueryService{store: store}
}

// Search returns every property matching criteria, whatever its status, in
// creation order.
func (q *QueryService) Search(criteria Criteria) []Property {
	return q.store.scan(func(p *Property) bool {
		return criteria.Matches(*p)
	})
}

// Shortlist records that userID bookmarked propertyID.
func (q *QueryService) Shortlist(userID, propertyID string) error {
	return q.store.mutate(propertyID, func(p *Property) error {
		if p.IsShortlistedBy(userID) {
			return ErrAlreadyShortlisted
		}
		p.ShortlistedBy = append(p.ShortlistedBy, userID)
		return nil
	})
}

// Shortlisted returns the available properties userID has shortlisted.
func (q *QueryService) Shortlisted(userID string) []Property {
	return q.store.scan(func(p *Property) bool {
		return p.IsAvailable() && p.IsShortlistedBy(userID)
	})
}
