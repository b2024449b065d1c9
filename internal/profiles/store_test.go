package profiles_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgoodall/trainboard/internal/domain"
	"github.com/dgoodall/trainboard/internal/profiles"
	"github.com/dgoodall/trainboard/internal/routecache"
)

// mockAPI is a hand-written test double for profiles.API.
// Set only the method fields your test needs.
type mockAPI struct {
	fetchProfiles   func(ctx context.Context) ([]domain.Profile, error)
	createProfile   func(ctx context.Context, origins, destinations []string) (domain.Profile, error)
	updateProfile   func(ctx context.Context, id int, origins, destinations []string) (domain.Profile, error)
	deleteProfile   func(ctx context.Context, id int) error
	setFavourite    func(ctx context.Context, id int) (bool, error)
	unsetFavourite  func(ctx context.Context, id int) (bool, error)
	fetchTrainsStub func(ctx context.Context, origins, destinations []string, forceFetch bool) ([]domain.Train, error)
}

func (m *mockAPI) FetchProfiles(ctx context.Context) ([]domain.Profile, error) {
	return m.fetchProfiles(ctx)
}
func (m *mockAPI) CreateProfile(ctx context.Context, origins, destinations []string) (domain.Profile, error) {
	return m.createProfile(ctx, origins, destinations)
}
func (m *mockAPI) UpdateProfile(ctx context.Context, id int, origins, destinations []string) (domain.Profile, error) {
	return m.updateProfile(ctx, id, origins, destinations)
}
func (m *mockAPI) DeleteProfile(ctx context.Context, id int) error {
	return m.deleteProfile(ctx, id)
}
func (m *mockAPI) SetFavouriteProfile(ctx context.Context, id int) (bool, error) {
	return m.setFavourite(ctx, id)
}
func (m *mockAPI) UnsetFavouriteProfile(ctx context.Context, id int) (bool, error) {
	return m.unsetFavourite(ctx, id)
}
func (m *mockAPI) FetchTrains(ctx context.Context, origins, destinations []string, forceFetch bool) ([]domain.Train, error) {
	return m.fetchTrainsStub(ctx, origins, destinations, forceFetch)
}

// compile-time checks: mockAPI serves both the store and the route cache.
var (
	_ profiles.API            = (*mockAPI)(nil)
	_ routecache.TrainFetcher = (*mockAPI)(nil)
)

// ---- helpers ---------------------------------------------------------------

func seedProfiles() []domain.Profile {
	return []domain.Profile{
		{ID: 1, Origins: []string{"PAD"}, Destinations: []string{"RDG"}},
		{ID: 2, Origins: []string{"EUS"}, Destinations: []string{"MAN"}, Favourite: true},
		{ID: 3, Origins: []string{"KGX"}, Destinations: []string{"YRK"}},
	}
}

// newStore builds a loaded store over the given mock.
func newStore(t *testing.T, api *mockAPI) *profiles.Store {
	t.Helper()
	if api.fetchProfiles == nil {
		api.fetchProfiles = func(context.Context) ([]domain.Profile, error) {
			return seedProfiles(), nil
		}
	}
	store := profiles.New(api, routecache.New(api, routecache.Options{}))
	require.NoError(t, store.Load(context.Background()))
	return store
}

func favouriteIDs(ps []domain.Profile) []int {
	var out []int
	for _, p := range ps {
		if p.Favourite {
			out = append(out, p.ID)
		}
	}
	return out
}

// ---- Load ------------------------------------------------------------------

func TestLoad_recordsFavouriteID(t *testing.T) {
	store := newStore(t, &mockAPI{})

	id, ok := store.FavouriteID()
	require.True(t, ok)
	assert.Equal(t, 2, id)
	assert.Len(t, store.Profiles(), 3)
}

func TestLoad_error(t *testing.T) {
	boom := errors.New("backend on fire")
	api := &mockAPI{
		fetchProfiles: func(context.Context) ([]domain.Profile, error) { return nil, boom },
	}
	store := profiles.New(api, routecache.New(api, routecache.Options{}))

	err := store.Load(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, store.Err(), boom)
	assert.False(t, store.Loading()[profiles.GlobalLoadingKey])
}

// ---- CRUD (confirm-then-apply) ---------------------------------------------

func TestCreate_appendsAfterConfirmation(t *testing.T) {
	api := &mockAPI{
		createProfile: func(_ context.Context, origins, destinations []string) (domain.Profile, error) {
			return domain.Profile{ID: 4, Origins: origins, Destinations: destinations}, nil
		},
	}
	store := newStore(t, api)

	created, err := store.Create(context.Background(), []string{"PAD"}, []string{"BRI"})

	require.NoError(t, err)
	assert.Equal(t, 4, created.ID)
	assert.Len(t, store.Profiles(), 4)
}

func TestCreate_failureLeavesListUntouched(t *testing.T) {
	boom := errors.New("backend on fire")
	api := &mockAPI{
		createProfile: func(context.Context, []string, []string) (domain.Profile, error) {
			return domain.Profile{}, boom
		},
	}
	store := newStore(t, api)

	_, err := store.Create(context.Background(), []string{"PAD"}, []string{"BRI"})

	assert.ErrorIs(t, err, boom)
	assert.Len(t, store.Profiles(), 3)
}

func TestUpdate_replacesByID(t *testing.T) {
	api := &mockAPI{
		updateProfile: func(_ context.Context, id int, origins, destinations []string) (domain.Profile, error) {
			return domain.Profile{ID: id, Origins: origins, Destinations: destinations}, nil
		},
	}
	store := newStore(t, api)

	_, err := store.Update(context.Background(), 1, []string{"PAD", "SLO"}, []string{"RDG"})

	require.NoError(t, err)
	got := store.Profiles()
	assert.Equal(t, []string{"PAD", "SLO"}, got[0].Origins)
	assert.Len(t, got, 3)
}

func TestDelete_filtersOutByID(t *testing.T) {
	api := &mockAPI{
		deleteProfile: func(context.Context, int) error { return nil },
	}
	store := newStore(t, api)

	require.NoError(t, store.Delete(context.Background(), 1))

	got := store.Profiles()
	assert.Len(t, got, 2)
	// Deleting a non-favourite leaves the favourite ID alone.
	id, ok := store.FavouriteID()
	require.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestDelete_favouriteClearsFavouriteID(t *testing.T) {
	api := &mockAPI{
		deleteProfile: func(context.Context, int) error { return nil },
	}
	store := newStore(t, api)

	require.NoError(t, store.Delete(context.Background(), 2))

	_, ok := store.FavouriteID()
	assert.False(t, ok)
}

// ---- Favourite (optimistic with rollback) ----------------------------------

func TestFavourite_setFlipsExactlyOne(t *testing.T) {
	api := &mockAPI{
		setFavourite: func(context.Context, int) (bool, error) { return true, nil },
	}
	store := newStore(t, api)

	require.NoError(t, store.Favourite(context.Background(), 1, true))

	assert.Equal(t, []int{1}, favouriteIDs(store.Profiles()))
	id, ok := store.FavouriteID()
	require.True(t, ok)
	assert.Equal(t, 1, id)
}

// TestFavourite_AThenB: setting A favourite then B favourite ends with
// exactly one profile (B) flagged.
func TestFavourite_AThenB(t *testing.T) {
	api := &mockAPI{
		setFavourite: func(context.Context, int) (bool, error) { return true, nil },
	}
	store := newStore(t, api)

	require.NoError(t, store.Favourite(context.Background(), 1, true))
	require.NoError(t, store.Favourite(context.Background(), 3, true))

	assert.Equal(t, []int{3}, favouriteIDs(store.Profiles()))
}

func TestFavourite_unset(t *testing.T) {
	api := &mockAPI{
		unsetFavourite: func(context.Context, int) (bool, error) { return true, nil },
	}
	store := newStore(t, api)

	require.NoError(t, store.Favourite(context.Background(), 2, false))

	assert.Empty(t, favouriteIDs(store.Profiles()))
	_, ok := store.FavouriteID()
	assert.False(t, ok)
}

// TestFavourite_rollbackOnError: a failed backend call restores the exact
// pre-call flags and favourite ID.
func TestFavourite_rollbackOnError(t *testing.T) {
	boom := errors.New("backend on fire")
	api := &mockAPI{
		setFavourite: func(context.Context, int) (bool, error) { return false, boom },
	}
	store := newStore(t, api)

	err := store.Favourite(context.Background(), 1, true)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{2}, favouriteIDs(store.Profiles()), "flags must return to pre-call values")
	id, ok := store.FavouriteID()
	require.True(t, ok)
	assert.Equal(t, 2, id)
}

// TestFavourite_rollbackOnFalsyResult: the backend answering success=false
// without an error also rolls the optimistic change back.
func TestFavourite_rollbackOnFalsyResult(t *testing.T) {
	api := &mockAPI{
		setFavourite: func(context.Context, int) (bool, error) { return false, nil },
	}
	store := newStore(t, api)

	err := store.Favourite(context.Background(), 1, true)

	require.Error(t, err)
	assert.Equal(t, []int{2}, favouriteIDs(store.Profiles()))
	id, _ := store.FavouriteID()
	assert.Equal(t, 2, id)
}

// ---- train orchestration ---------------------------------------------------

func TestFetchTrains_cachesPerProfileRoute(t *testing.T) {
	calls := 0
	api := &mockAPI{
		fetchTrainsStub: func(context.Context, []string, []string, bool) ([]domain.Train, error) {
			calls++
			return []domain.Train{{ServiceID: "svc-1"}}, nil
		},
	}
	store := newStore(t, api)
	ps := store.Profiles()

	require.NoError(t, store.FetchTrains(context.Background(), ps[0], false))
	require.NoError(t, store.FetchTrains(context.Background(), ps[0], false))

	assert.Equal(t, 1, calls)
	assert.Len(t, store.TrainsFor(ps[0].ID), 1)
}

func TestLoading_mergesRouteCacheView(t *testing.T) {
	api := &mockAPI{
		fetchTrainsStub: func(context.Context, []string, []string, bool) ([]domain.Train, error) {
			return nil, errors.New("backend on fire")
		},
	}
	store := newStore(t, api)
	ps := store.Profiles()

	_ = store.FetchTrains(context.Background(), ps[0], false)

	// The fetch has finished, so its loading flag must be down in the
	// merged view, and the route error surfaces through the store.
	assert.False(t, store.Loading()["1"])
	assert.Error(t, store.Err())
}

func TestOperationPolicy_namesTheSplit(t *testing.T) {
	assert.Equal(t, profiles.ConfirmThenApply, profiles.OperationPolicy["create"])
	assert.Equal(t, profiles.ConfirmThenApply, profiles.OperationPolicy["update"])
	assert.Equal(t, profiles.ConfirmThenApply, profiles.OperationPolicy["delete"])
	assert.Equal(t, profiles.Optimistic, profiles.OperationPolicy["favourite"])
}
