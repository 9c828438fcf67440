package listing

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
)

func price(v float64) *float64 { return &v }

func seedCatalog(t *testing.T) (*Store, []string) {
	t.Helper()
	store := NewStore()
	seed := []struct {
		owner   string
		details Details
	}{
		{"o1", apartment("NY", 1000)},
		{"o1", Details{Location: "NY", Price: 2500, PropertyType: "House", Description: "Brownstone"}},
		{"o2", apartment("LA", 800)},
		{"o2", Details{Location: "LA", Price: 4000, PropertyType: "House", Description: "Bungalow"}},
	}
	ids := make([]string, 0, len(seed))
	for _, s := range seed {
		id, err := store.Create(s.owner, s.details)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		ids = append(ids, id)
	}
	return store, ids
}

func idsOf(props []Property) []string {
	out := make([]string, 0, len(props))
	for _, p := range props {
		out = append(out, p.ID)
	}
	return out
}

func sameIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestQueryService_Search(t *testing.T) {
	store, ids := seedCatalog(t)
	svc := NewQueryService(store)

	if err := store.UpdateStatus(ids[0], "sold", "o1"); err != nil {
		t.Fatalf("update status: %v", err)
	}

	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{"no criteria returns everything regardless of status", Criteria{}, ids},
		{"min price", Criteria{MinPrice: price(1000)}, []string{ids[0], ids[1], ids[3]}},
		{"max price", Criteria{MaxPrice: price(1000)}, []string{ids[0], ids[2]}},
		{"price range intersection", Criteria{MinPrice: price(900), MaxPrice: price(3000)}, []string{ids[0], ids[1]}},
		{"location", Criteria{Location: "LA"}, []string{ids[2], ids[3]}},
		{"property type", Criteria{PropertyType: "House"}, []string{ids[1], ids[3]}},
		{"all criteria", Criteria{MinPrice: price(500), MaxPrice: price(1500), Location: "NY", PropertyType: "Apartment"}, []string{ids[0]}},
		{"unknown location", Criteria{Location: "Paris"}, []string{}},
		{"unknown property type", Criteria{PropertyType: "Castle"}, []string{}},
		{"nothing above price", Criteria{MinPrice: price(5000)}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idsOf(svc.Search(tt.criteria))
			if !sameIDs(got, tt.want) {
				t.Fatalf("expected %v got %v", tt.want, got)
			}
		})
	}
}

func TestQueryService_Shortlist(t *testing.T) {
	store, ids := seedCatalog(t)
	svc := NewQueryService(store)

	if err := svc.Shortlist("u1", ids[0]); err != nil {
		t.Fatalf("first shortlist: unexpected error: %v", err)
	}
	if err := svc.Shortlist("u1", ids[0]); !errors.Is(err, ErrAlreadyShortlisted) {
		t.Fatalf("expected ErrAlreadyShortlisted, got %v", err)
	}
	if err := svc.Shortlist("u2", ids[0]); err != nil {
		t.Fatalf("second user shortlist: unexpected error: %v", err)
	}
	if err := svc.Shortlist("u1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := store.Get(ids[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !sameIDs(got.ShortlistedBy, []string{"u1", "u2"}) {
		t.Fatalf("unexpected shortlist %v", got.ShortlistedBy)
	}
}

func TestQueryService_Shortlisted(t *testing.T) {
	store, ids := seedCatalog(t)
	svc := NewQueryService(store)

	if got := svc.Shortlisted("u1"); len(got) != 0 {
		t.Fatalf("expected no shortlisted properties, got %d", len(got))
	}

	for _, id := range []string{ids[3], ids[0]} {
		if err := svc.Shortlist("u1", id); err != nil {
			t.Fatalf("shortlist %s: %v", id, err)
		}
	}

	if got := idsOf(svc.Shortlisted("u1")); !sameIDs(got, []string{ids[0], ids[3]}) {
		t.Fatalf("expected creation order %v got %v", []string{ids[0], ids[3]}, got)
	}
	if got := svc.Shortlisted("u2"); len(got) != 0 {
		t.Fatalf("shortlist leaked to another user: %v", idsOf(got))
	}

	if err := store.UpdateStatus(ids[0], "sold", "o1"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if got := idsOf(svc.Shortlisted("u1")); !sameIDs(got, []string{ids[3]}) {
		t.Fatalf("expected sold property to be hidden, got %v", got)
	}
}

func TestQueryService_OwnerScenario(t *testing.T) {
	store := NewStore()
	svc := NewQueryService(store)

	pA, err := store.Create("o1", apartment("NY", 1000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.UpdateStatus(pA, "sold", "o2"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := store.UpdateStatus(pA, "sold", "o1"); err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if got, _ := store.Get(pA); got.Status != "sold" {
		t.Fatalf("expected sold, got %q", got.Status)
	}

	found := svc.Search(Criteria{MinPrice: price(500), MaxPrice: price(1500), Location: "NY", PropertyType: "Apartment"})
	if !sameIDs(idsOf(found), []string{pA}) {
		t.Fatalf("expected search to include sold property, got %v", idsOf(found))
	}
	if got := svc.Shortlisted("o2"); len(got) != 0 {
		t.Fatalf("expected empty shortlist, got %v", idsOf(got))
	}
}

func TestQueryService_ConcurrentShortlistIsAtomic(t *testing.T) {
	store, ids := seedCatalog(t)
	svc := NewQueryService(store)

	var (
		g         errgroup.Group
		successes atomic.Int32
	)
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			err := svc.Shortlist("u1", ids[1])
			switch {
			case err == nil:
				successes.Add(1)
				return nil
			case errors.Is(err, ErrAlreadyShortlisted):
				return nil
			default:
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent shortlist: %v", err)
	}
	if successes.Load() != 1 {
		t.Fatalf("expected exactly one successful shortlist, got %d", successes.Load())
	}

	got, _ := store.Get(ids[1])
	if len(got.ShortlistedBy) != 1 {
		t.Fatalf("expected a single shortlist entry, got %v", got.ShortlistedBy)
	}
}

func TestQueryService_ConcurrentReadersAndWriters(t *testing.T) {
	store, ids := seedCatalog(t)
	svc := NewQueryService(store)

	var g errgroup.Group
	for w := 0; w < 4; w++ {
		user := fmt.Sprintf("u%d", w)
		g.Go(func() error {
			for _, id := range ids {
				if err := svc.Shortlist(user, id); err != nil {
					return err
				}
			}
			return nil
		})
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				svc.Search(Criteria{})
				svc.Shortlisted(user)
				store.ListByOwner("o1")
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := 0; i < 50; i++ {
			status := "sold"
			if i%2 == 0 {
				status = StatusAvailable
			}
			if err := store.UpdateStatus(ids[2], status, "o2"); err != nil {
				return err
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent access: %v", err)
	}

	for _, p := range svc.Search(Criteria{}) {
		if len(p.ShortlistedBy) != 4 {
			t.Fatalf("property %s: expected 4 shortlist entries, got %v", p.ID, p.ShortlistedBy)
		}
	}
}

func TestProperty_View(t *testing.T) {
	p := Property{
		ID:            "p1",
		OwnerID:       "o1",
		Details:       apartment("NY", 1000),
		Status:        "sold",
		ShortlistedBy: []string{"u1"},
	}
	v := p.View()
	if v.PropertyID != "p1" || v.Status != "sold" || v.Details.Location != "NY" {
		t.Fatalf("unexpected view %+v", v)
	}
	if !sameIDs(v.Details.ShortlistedBy, []string{"u1"}) {
		t.Fatalf("unexpected shortlist in view: %v", v.Details.ShortlistedBy)
	}
}
