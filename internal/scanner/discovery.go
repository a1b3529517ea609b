package scanner

import (
	"sort"

	"github.com/avolkov/triarb/internal/domain"
)

// FindRoutes builds the set of valid triangular routes from the tradable
// symbol universe. A triple (A, mid1, mid2) is a route when symbols connect
// A to mid1, mid1 to mid2, and mid2 back to A, each hop in either
// orientation; the trade side per leg is derived later from the orientation
// that is actually listed.
//
// Discovery runs once at startup. The result is sorted by route ID so the
// same market always yields the same sequence; an empty result is valid.
func FindRoutes(m *domain.Market, anchors []string) []domain.Route {
	adj := adjacency(m)

	var routes []domain.Route
	seen := make(map[string]struct{})

	for _, anchor := range anchors {
		for mid1 := range adj[anchor] {
			for mid2 := range adj[mid1] {
				if mid2 == anchor || mid2 == mid1 {
					continue
				}
				if _, ok := adj[mid2][anchor]; !ok {
					continue
				}
				r := domain.Route{Anchor: anchor, Mid1: mid1, Mid2: mid2}
				if _, dup := seen[r.ID()]; dup {
					continue
				}
				seen[r.ID()] = struct{}{}
				routes = append(routes, r)
			}
		}
	}

	sort.Slice(routes, func(i, j int) bool {
		return routes[i].ID() < routes[j].ID()
	})
	return routes
}

// adjacency maps each asset to the set of assets it shares a listed pair
// with, in either orientation.
func adjacency(m *domain.Market) map[string]map[string]struct{} {
	adj := make(map[string]map[string]struct{})
	link := func(a, b string) {
		if adj[a] == nil {
			adj[a] = make(map[string]struct{})
		}
		adj[a][b] = struct{}{}
	}
	for _, s := range m.Symbols() {
		link(s.Base, s.Quote)
		link(s.Quote, s.Base)
	}
	return adj
}
