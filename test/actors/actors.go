package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"propertyhub/auth"
	"propertyhub/listing"
)

// StatusHijacked is the status intruders try to write. It must never land.
const StatusHijacked = "hijacked"

var (
	locations     = []string{"New York", "Boston", "Austin", "Denver"}
	propertyTypes = []string{"apartment", "house", "condo"}
	ownerStatuses = []string{listing.StatusAvailable, "pending", "sold"}
)

// Tally counts successful writes so the final oracles can reconcile them
// against the store.
type Tally struct {
	Created     atomic.Int64
	Shortlisted atomic.Int64
	Registered  atomic.Int64
}

// Creator keeps listing new properties for ownerID.
func Creator(ctx context.Context, store *listing.Store, ownerID string, seed int64, tally *Tally, stop <-chan struct{}) error {
	r := rand.New(rand.NewSource(seed))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		details := listing.Details{
			Location:     locations[r.Intn(len(locations))],
			Price:        float64(50_000 + r.Intn(950_000)),
			PropertyType: propertyTypes[r.Intn(len(propertyTypes))],
			Description:  fmt.Sprintf("listing by %s", ownerID),
			Amenities:    []string{"parking"},
		}
		if _, err := store.Create(ownerID, details); err != nil {
			return fmt.Errorf("creator %s: %w", ownerID, err)
		}
		tally.Created.Add(1)
		time.Sleep(time.Duration(1+r.Intn(5)) * time.Millisecond)
	}
}

// StatusFlipper rotates the status of the owner's own properties. Properties
// that are not available drop out of ListByOwner, so it also scans the
// catalog to bring them back.
func StatusFlipper(ctx context.Context, store *listing.Store, queries *listing.QueryService, ownerID string, seed int64, stop <-chan struct{}) error {
	r := rand.New(rand.NewSource(seed))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var mine []listing.Property
		for _, p := range queries.Search(listing.Criteria{}) {
			if p.OwnerID == ownerID {
				mine = append(mine, p)
			}
		}
		if len(mine) > 0 {
			target := mine[r.Intn(len(mine))]
			status := ownerStatuses[r.Intn(len(ownerStatuses))]
			if err := store.UpdateStatus(target.ID, status, ownerID); err != nil {
				return fmt.Errorf("owner %s update %s: %w", ownerID, target.ID, err)
			}
		}
		time.Sleep(time.Duration(2+r.Intn(8)) * time.Millisecond)
	}
}

// Intruder tries to change the status of properties it does not own. Every
// attempt must be rejected.
func Intruder(ctx context.Context, store *listing.Store, queries *listing.QueryService, intruderID string, seed int64, stop <-chan struct{}) error {
	r := rand.New(rand.NewSource(seed))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		all := queries.Search(listing.Criteria{})
		if len(all) > 0 {
			target := all[r.Intn(len(all))]
			err := store.UpdateStatus(target.ID, StatusHijacked, intruderID)
			if !errors.Is(err, listing.ErrUnauthorized) {
				return fmt.Errorf("intruder %s on %s: expected unauthorized, got %v", intruderID, target.ID, err)
			}
		}
		if err := store.UpdateStatus("missing-property", StatusHijacked, intruderID); !errors.Is(err, listing.ErrNotFound) {
			return fmt.Errorf("intruder %s: expected not found, got %v", intruderID, err)
		}
		time.Sleep(time.Duration(2+r.Intn(8)) * time.Millisecond)
	}
}

// Shortlister bookmarks random properties for userID.
func Shortlister(ctx context.Context, queries *listing.QueryService, userID string, seed int64, tally *Tally, stop <-chan struct{}) error {
	r := rand.New(rand.NewSource(seed))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		criteria := listing.Criteria{Location: locations[r.Intn(len(locations))]}
		found := queries.Search(criteria)
		if len(found) > 0 {
			target := found[r.Intn(len(found))]
			err := queries.Shortlist(userID, target.ID)
			switch {
			case err == nil:
				tally.Shortlisted.Add(1)
			case errors.Is(err, listing.ErrAlreadyShortlisted):
			default:
				return fmt.Errorf("shortlister %s on %s: %w", userID, target.ID, err)
			}
		}
		for _, p := range queries.Shortlisted(userID) {
			if !p.IsAvailable() || !p.IsShortlistedBy(userID) {
				return fmt.Errorf("shortlister %s: shortlisted view returned %s with status %q", userID, p.ID, p.Status)
			}
		}
		time.Sleep(time.Duration(1+r.Intn(5)) * time.Millisecond)
	}
}

// Searcher runs random searches and checks every hit against its criteria.
func Searcher(ctx context.Context, queries *listing.QueryService, seed int64, stop <-chan struct{}) error {
	r := rand.New(rand.NewSource(seed))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var criteria listing.Criteria
		if r.Intn(2) == 0 {
			lo := float64(r.Intn(500_000))
			criteria.MinPrice = &lo
		}
		if r.Intn(2) == 0 {
			hi := float64(500_000 + r.Intn(500_000))
			criteria.MaxPrice = &hi
		}
		if r.Intn(2) == 0 {
			criteria.PropertyType = propertyTypes[r.Intn(len(propertyTypes))]
		}
		for _, p := range queries.Search(criteria) {
			if !criteria.Matches(p) {
				return fmt.Errorf("searcher: %s does not match %+v", p.ID, criteria)
			}
		}
		time.Sleep(time.Duration(1+r.Intn(3)) * time.Millisecond)
	}
}

// Registrar races other registrars on a small pool of email addresses.
// Duplicate rejections are expected under contention.
func Registrar(ctx context.Context, svc *auth.Service, seed int64, tally *Tally, stop <-chan struct{}) error {
	r := rand.New(rand.NewSource(seed))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		email := fmt.Sprintf("user%d@example.com", r.Intn(16))
		_, err := svc.Register(ctx, auth.RegisterRequest{
			Email:    email,
			Password: "stress-password",
			FullName: "Stress User",
		})
		switch {
		case err == nil:
			tally.Registered.Add(1)
		case errors.Is(err, auth.ErrDuplicateEmail):
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			return fmt.Errorf("registrar %s: %w", email, err)
		}
		time.Sleep(time.Duration(5+r.Intn(20)) * time.Millisecond)
	}
}
