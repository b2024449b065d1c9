package domain

import "strings"

// Profile is a saved route: an ordered list of origin station codes mapped to
// an ordered list of destination codes. The backend owns profiles; the client
// holds a cached copy synchronized through the profiles store.
type Profile struct {
	ID           int      `json:"id"`
	Origins      []string `json:"origins"`
	Destinations []string `json:"destinations"`
	Favourite    bool     `json:"favourite"`
}

// Route returns the profile's route key.
func (p Profile) Route() RouteKey {
	return NewRouteKey(p.Origins, p.Destinations)
}

// RouteKey identifies an (origins, destinations) pair for cache lookups.
// The key is order-sensitive: ["PAD"]→["RDG"] and ["RDG"]→["PAD"] are
// distinct routes, as are ["A","B"]→["C"] and ["B","A"]→["C"]. Two profiles
// with identical routes compare equal and share a cache entry.
//
// The zero RouteKey is valid and matches only another zero key.
type RouteKey struct {
	s string
}

// NewRouteKey builds the key from the lists in their given order.
func NewRouteKey(origins, destinations []string) RouteKey {
	return RouteKey{s: strings.Join(origins, "-") + "_" + strings.Join(destinations, "-")}
}

func (k RouteKey) String() string { return k.s }
