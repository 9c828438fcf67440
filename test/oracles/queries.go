package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"propertyhub/listing"
)

// Oracle is an invariant over a single read of the live store. It returns a
// description of the first violation, or "" when the invariant holds.
type Oracle struct {
	Name  string
	Check func(store *listing.Store, queries *listing.QueryService, users []string) string
}

// SQLOracle is an invariant over the accounts database. Any returned row is a
// violation.
type SQLOracle struct {
	Name string
	SQL  string
}

func All(forbiddenStatus string) []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_property_ids",
			Check: func(_ *listing.Store, q *listing.QueryService, _ []string) string {
				seen := make(map[string]struct{})
				for _, p := range q.Search(listing.Criteria{}) {
					if _, dup := seen[p.ID]; dup {
						return fmt.Sprintf("duplicate id %s", p.ID)
					}
					seen[p.ID] = struct{}{}
				}
				return ""
			},
		},
		{
			Name: "O2_shortlist_no_duplicates",
			Check: func(_ *listing.Store, q *listing.QueryService, _ []string) string {
				for _, p := range q.Search(listing.Criteria{}) {
					seen := make(map[string]struct{}, len(p.ShortlistedBy))
					for _, u := range p.ShortlistedBy {
						if _, dup := seen[u]; dup {
							return fmt.Sprintf("property %s shortlisted twice by %s", p.ID, u)
						}
						seen[u] = struct{}{}
					}
				}
				return ""
			},
		},
		{
			Name: "O3_no_foreign_status_write",
			Check: func(_ *listing.Store, q *listing.QueryService, _ []string) string {
				for _, p := range q.Search(listing.Criteria{}) {
					if p.Status == forbiddenStatus {
						return fmt.Sprintf("property %s owned by %s has status %q", p.ID, p.OwnerID, p.Status)
					}
				}
				return ""
			},
		},
		{
			Name: "O4_shortlisted_view",
			Check: func(_ *listing.Store, q *listing.QueryService, users []string) string {
				for _, u := range users {
					for _, p := range q.Shortlisted(u) {
						if !p.IsAvailable() || !p.IsShortlistedBy(u) {
							return fmt.Sprintf("user %s sees %s (status %q)", u, p.ID, p.Status)
						}
					}
				}
				return ""
			},
		},
		{
			Name: "O5_portfolio_ownership",
			Check: func(s *listing.Store, _ *listing.QueryService, users []string) string {
				for _, u := range users {
					seen := make(map[string]struct{})
					for _, p := range s.ListByOwner(u) {
						if p.OwnerID != u || !p.IsAvailable() {
							return fmt.Sprintf("owner %s portfolio holds %s (owner %s, status %q)", u, p.ID, p.OwnerID, p.Status)
						}
						if _, dup := seen[p.ID]; dup {
							return fmt.Sprintf("owner %s portfolio repeats %s", u, p.ID)
						}
						seen[p.ID] = struct{}{}
					}
				}
				return ""
			},
		},
	}
}

// Run executes all store oracles and returns the first failure (name and
// detail) or an empty name if all pass.
func Run(store *listing.Store, queries *listing.QueryService, users []string, forbiddenStatus string) (string, string) {
	for _, o := range All(forbiddenStatus) {
		if detail := o.Check(store, queries, users); detail != "" {
			return o.Name, detail
		}
	}
	return "", ""
}

// Reconcile runs once writers have stopped. It compares the quiescent store
// with the number of writes the actors reported.
func Reconcile(store *listing.Store, queries *listing.QueryService, owners []string, created, shortlisted int64) (string, string) {
	all := queries.Search(listing.Criteria{})
	if int64(len(all)) != created || int64(store.Len()) != created {
		return "R1_create_count", fmt.Sprintf("created %d, search %d, len %d", created, len(all), store.Len())
	}

	var entries int64
	availableByOwner := make(map[string]int)
	for _, p := range all {
		entries += int64(len(p.ShortlistedBy))
		if p.IsAvailable() {
			availableByOwner[p.OwnerID]++
		}
	}
	if entries != shortlisted {
		return "R2_shortlist_count", fmt.Sprintf("recorded %d, stored %d", shortlisted, entries)
	}

	for _, owner := range owners {
		if got, want := len(store.ListByOwner(owner)), availableByOwner[owner]; got != want {
			return "R3_portfolio_consistency", fmt.Sprintf("owner %s lists %d, catalog has %d available", owner, got, want)
		}
	}
	return "", ""
}

func SQL() []SQLOracle {
	return []SQLOracle{
		{
			Name: "S1_unique_account_email",
			SQL: `SELECT lower(email), COUNT(*) FROM accounts
                  GROUP BY lower(email) HAVING COUNT(*) > 1`,
		},
		{
			Name: "S2_password_hashed",
			SQL:  `SELECT id FROM accounts WHERE password_hash NOT LIKE '$2%'`,
		},
	}
}

// RunSQL executes all SQL oracles and returns the first failure (name and sample row text) or empty name if all pass.
func RunSQL(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range SQL() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
