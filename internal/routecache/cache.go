// Package routecache avoids redundant train lookups for routes already
// fetched in this session, while allowing an explicit force refresh.
//
// Results are cached once per route key and shared by every consumer of
// that route: two profiles with identical origin/destination lists hit the
// network once between them. Display state (trains, loading flag, error,
// last fetch time) is tracked separately per consumer routeID so several
// profiles can be in flight at the same time without interfering.
//
// Entries live for the lifetime of the cache and are replaced only by a
// forced refresh; there is no eviction. The working set is a user's handful
// of saved routes, so unbounded growth is accepted.
package routecache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dgoodall/trainboard/internal/domain"
)

// QuickLookupID is the reserved routeID for ad-hoc lookups that are not
// tied to a saved profile.
const QuickLookupID = -1

// TrainFetcher is the slice of the API client the cache depends on.
type TrainFetcher interface {
	FetchTrains(ctx context.Context, origins, destinations []string, forceFetch bool) ([]domain.Train, error)
}

// Options tunes cache behavior.
type Options struct {
	// DedupeInFlight collapses concurrent network fetches for the same
	// route key into one request whose result every waiter shares. Off by
	// default, matching the original contract: near-simultaneous uncached
	// lookups for one route both hit the network and the last response to
	// resolve wins in the routeID slot.
	DedupeInFlight bool
}

// entry is one cached lookup result.
type entry struct {
	trains    []domain.Train
	fetchedAt time.Time
}

// Cache is the session-lifetime route cache. Construct with New at startup
// and Reset it on logout; safe for concurrent use.
type Cache struct {
	fetcher TrainFetcher
	dedupe  bool
	group   singleflight.Group

	mu        sync.Mutex
	byRoute   map[domain.RouteKey]entry
	trains    map[int][]domain.Train
	lastFetch map[int]time.Time
	loading   map[int]bool
	errs      map[int]error
	lastErr   error
}

// New constructs an empty cache over the given fetcher.
func New(fetcher TrainFetcher, opts Options) *Cache {
	return &Cache{
		fetcher:   fetcher,
		dedupe:    opts.DedupeInFlight,
		byRoute:   make(map[domain.RouteKey]entry),
		trains:    make(map[int][]domain.Train),
		lastFetch: make(map[int]time.Time),
		loading:   make(map[int]bool),
		errs:      make(map[int]error),
	}
}

// FetchTrainsForRoute resolves trains for the route under the given
// routeID. A cache hit (forceFetch false, key present) copies the cached
// list and its original fetch time into the routeID slot without touching
// the network. Otherwise the routeID is marked loading and the API client
// is called; success stores the result under both the route key (for
// reuse) and the routeID (for display), failure records a routeID-scoped
// error and leaves any previously displayed data and the cache entry
// untouched.
func (c *Cache) FetchTrainsForRoute(ctx context.Context, origins, destinations []string, routeID int, forceFetch bool) error {
	key := domain.NewRouteKey(origins, destinations)

	c.mu.Lock()
	if !forceFetch {
		if e, ok := c.byRoute[key]; ok {
			c.trains[routeID] = e.trains
			c.lastFetch[routeID] = e.fetchedAt
			delete(c.errs, routeID)
			c.mu.Unlock()
			return nil
		}
	}
	c.loading[routeID] = true
	delete(c.errs, routeID)
	c.mu.Unlock()

	fetched, err := c.fetch(ctx, key, origins, destinations, forceFetch)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading[routeID] = false

	if err != nil {
		c.errs[routeID] = err
		c.lastErr = err
		return err
	}

	c.byRoute[key] = fetched
	c.trains[routeID] = fetched.trains
	c.lastFetch[routeID] = fetched.fetchedAt
	return nil
}

// fetch performs the network call, optionally funneled through singleflight
// so concurrent callers for one key share a single request and result.
func (c *Cache) fetch(ctx context.Context, key domain.RouteKey, origins, destinations []string, forceFetch bool) (entry, error) {
	if !c.dedupe {
		trains, err := c.fetcher.FetchTrains(ctx, origins, destinations, forceFetch)
		if err != nil {
			return entry{}, err
		}
		return entry{trains: trains, fetchedAt: time.Now()}, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		trains, err := c.fetcher.FetchTrains(ctx, origins, destinations, forceFetch)
		if err != nil {
			return entry{}, err
		}
		return entry{trains: trains, fetchedAt: time.Now()}, nil
	})
	if err != nil {
		return entry{}, err
	}
	return v.(entry), nil
}

// TrainsFor returns the trains last resolved for routeID. The slice is
// shared; treat it as read-only.
func (c *Cache) TrainsFor(routeID int) []domain.Train {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trains[routeID]
}

// LastFetchTime returns when routeID's data was actually fetched from the
// network — for a cache hit this is the original fetch time, not the hit.
func (c *Cache) LastFetchTime(routeID int) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.lastFetch[routeID]
	return t, ok
}

// Loading reports whether a fetch for routeID is in flight.
func (c *Cache) Loading(routeID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading[routeID]
}

// Err returns the error from routeID's most recent failed fetch, cleared by
// the next attempt for that routeID.
func (c *Cache) Err(routeID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs[routeID]
}

// LastErr returns the most recent route-scoped error across all routeIDs.
func (c *Cache) LastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LoadingView returns a snapshot of the per-routeID loading flags, used by
// the profiles store to build its merged loading view.
func (c *Cache) LoadingView() map[int]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	view := make(map[int]bool, len(c.loading))
	for id, v := range c.loading {
		view[id] = v
	}
	return view
}

// Reset drops all cached and per-routeID state. Called on logout.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byRoute = make(map[domain.RouteKey]entry)
	c.trains = make(map[int][]domain.Train)
	c.lastFetch = make(map[int]time.Time)
	c.loading = make(map[int]bool)
	c.errs = make(map[int]error)
	c.lastErr = nil
}
