// Package profiles owns the client's authoritative copy of the user's saved
// routes and orchestrates per-profile train lookups through the route cache.
//
// Two consistency policies coexist deliberately and are named rather than
// accidental: CRUD operations are confirm-then-apply (the in-memory list is
// spliced only after the server confirms), while the favourite toggle is
// optimistic (flags flip immediately and are rolled back exactly on
// failure). The favourite flip is the only operation with a compensating
// action.
package profiles

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/dgoodall/trainboard/internal/domain"
	"github.com/dgoodall/trainboard/internal/routecache"
)

// GlobalLoadingKey tracks the initial list load and profile creation;
// item-level operations use the profile ID as their key.
const GlobalLoadingKey = "global"

// Policy is the consistency strategy a mutating operation uses.
type Policy string

const (
	// ConfirmThenApply mutates local state only after the server confirms.
	ConfirmThenApply Policy = "confirm-then-apply"
	// Optimistic mutates local state first and rolls back exactly on failure.
	Optimistic Policy = "optimistic"
)

// OperationPolicy records which strategy each mutating operation follows.
// The split is intentional: CRUD waits for the server, the favourite toggle
// does not.
var OperationPolicy = map[string]Policy{
	"create":    ConfirmThenApply,
	"update":    ConfirmThenApply,
	"delete":    ConfirmThenApply,
	"favourite": Optimistic,
}

// API is the slice of the API client the store depends on.
type API interface {
	FetchProfiles(ctx context.Context) ([]domain.Profile, error)
	CreateProfile(ctx context.Context, origins, destinations []string) (domain.Profile, error)
	UpdateProfile(ctx context.Context, id int, origins, destinations []string) (domain.Profile, error)
	DeleteProfile(ctx context.Context, id int) error
	SetFavouriteProfile(ctx context.Context, id int) (bool, error)
	UnsetFavouriteProfile(ctx context.Context, id int) (bool, error)
}

// Store is the profile state container. Construct with New; safe for
// concurrent use.
type Store struct {
	api   API
	cache *routecache.Cache

	mu          sync.Mutex
	profiles    []domain.Profile
	favouriteID int
	hasFav      bool
	loading     map[string]bool
	err         error
}

// New constructs an empty store over the given API client and route cache.
func New(api API, cache *routecache.Cache) *Store {
	return &Store{
		api:     api,
		cache:   cache,
		loading: make(map[string]bool),
	}
}

// Load fetches all profiles from the server, replacing the local list, and
// records the favourite profile's ID if one is flagged.
func (s *Store) Load(ctx context.Context) error {
	s.setLoading(GlobalLoadingKey, true)
	defer s.setLoading(GlobalLoadingKey, false)

	data, err := s.api.FetchProfiles(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("profiles.Store.Load: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	s.profiles = data
	s.hasFav = false
	for _, p := range data {
		if p.Favourite {
			s.favouriteID = p.ID
			s.hasFav = true
			break
		}
	}
	return nil
}

// Create saves a new route. Policy: ConfirmThenApply — the profile is
// appended only once the server has assigned it an ID.
func (s *Store) Create(ctx context.Context, origins, destinations []string) (domain.Profile, error) {
	s.setLoading(GlobalLoadingKey, true)
	defer s.setLoading(GlobalLoadingKey, false)

	created, err := s.api.CreateProfile(ctx, origins, destinations)
	if err != nil {
		return domain.Profile{}, s.fail(fmt.Errorf("profiles.Store.Create: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	s.profiles = append(s.cloneLocked(), created)
	return created, nil
}

// Update replaces a profile's route lists. Policy: ConfirmThenApply.
func (s *Store) Update(ctx context.Context, id int, origins, destinations []string) (domain.Profile, error) {
	key := strconv.Itoa(id)
	s.setLoading(key, true)
	defer s.setLoading(key, false)

	updated, err := s.api.UpdateProfile(ctx, id, origins, destinations)
	if err != nil {
		return domain.Profile{}, s.fail(fmt.Errorf("profiles.Store.Update: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	next := s.cloneLocked()
	for i, p := range next {
		if p.ID == id {
			next[i] = updated
		}
	}
	s.profiles = next
	return updated, nil
}

// Delete removes a profile. Policy: ConfirmThenApply. Deleting the current
// favourite clears the tracked favourite ID locally; the server is assumed
// to drop the flag along with the row.
func (s *Store) Delete(ctx context.Context, id int) error {
	key := strconv.Itoa(id)
	s.setLoading(key, true)
	defer s.setLoading(key, false)

	if err := s.api.DeleteProfile(ctx, id); err != nil {
		return s.fail(fmt.Errorf("profiles.Store.Delete: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	next := make([]domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if p.ID != id {
			next = append(next, p)
		}
	}
	s.profiles = next
	if s.hasFav && s.favouriteID == id {
		s.hasFav = false
		s.favouriteID = 0
	}
	return nil
}

// Favourite sets or clears a profile's favourite flag. Policy: Optimistic —
// the local flags and tracked ID flip before the call goes out (setting
// leaves exactly one profile flagged, clearing leaves none). If the call
// fails or the backend reports no success, the pre-call flags and ID are
// restored exactly.
func (s *Store) Favourite(ctx context.Context, id int, set bool) error {
	key := strconv.Itoa(id)
	s.setLoading(key, true)
	defer s.setLoading(key, false)

	// Snapshot for rollback, then apply the optimistic flip.
	s.mu.Lock()
	prior := s.cloneLocked()
	priorFavID, priorHasFav := s.favouriteID, s.hasFav

	next := s.cloneLocked()
	for i := range next {
		next[i].Favourite = set && next[i].ID == id
	}
	s.profiles = next
	s.favouriteID, s.hasFav = id, set
	s.err = nil
	s.mu.Unlock()

	ok, err := s.callFavourite(ctx, id, set)
	if err == nil && ok {
		return nil
	}

	// Compensate: restore the exact pre-call state.
	s.mu.Lock()
	s.profiles = prior
	s.favouriteID, s.hasFav = priorFavID, priorHasFav
	s.mu.Unlock()

	if err == nil {
		err = fmt.Errorf("favourite update was rejected")
	}
	return s.fail(fmt.Errorf("profiles.Store.Favourite: %w", err))
}

func (s *Store) callFavourite(ctx context.Context, id int, set bool) (bool, error) {
	if set {
		return s.api.SetFavouriteProfile(ctx, id)
	}
	return s.api.UnsetFavouriteProfile(ctx, id)
}

// FetchTrains resolves live departures for a profile's route through the
// cache, keyed by the profile ID.
func (s *Store) FetchTrains(ctx context.Context, p domain.Profile, forceFetch bool) error {
	return s.cache.FetchTrainsForRoute(ctx, p.Origins, p.Destinations, p.ID, forceFetch)
}

// TrainsFor returns the departures last resolved for a profile.
func (s *Store) TrainsFor(profileID int) []domain.Train {
	return s.cache.TrainsFor(profileID)
}

// Profiles returns a copy of the current list.
func (s *Store) Profiles() []domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneLocked()
}

// FavouriteID returns the tracked favourite profile ID, if any.
func (s *Store) FavouriteID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favouriteID, s.hasFav
}

// Loading merges the store's own loading keys with the route cache's
// per-route flags into the single view the UI consumes. Route cache keys
// are the stringified routeIDs, so a profile's CRUD and train-fetch loading
// states share one key.
func (s *Store) Loading() map[string]bool {
	s.mu.Lock()
	merged := make(map[string]bool, len(s.loading))
	for k, v := range s.loading {
		merged[k] = v
	}
	s.mu.Unlock()

	for id, v := range s.cache.LoadingView() {
		key := strconv.Itoa(id)
		merged[key] = merged[key] || v
	}
	return merged
}

// Err returns the store's own error if set, otherwise the route cache's
// most recent route-scoped error.
func (s *Store) Err() error {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.cache.LastErr()
}

// cloneLocked copies the profile list so mutations never alias slices a
// caller may still hold. Caller holds s.mu.
func (s *Store) cloneLocked() []domain.Profile {
	out := make([]domain.Profile, len(s.profiles))
	copy(out, s.profiles)
	return out
}

func (s *Store) setLoading(key string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.loading[key] = true
	} else {
		delete(s.loading, key)
	}
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}
