// Package testutil provides a fake Trainboard backend for package tests.
// The fake speaks the same HTTP contract as the real service — form-encoded
// auth issuing JWTs, profile CRUD, and the asynchronous train lookup task
// protocol — with scriptable outcomes and per-endpoint request counters so
// tests can assert on exactly how many network calls were made.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dgoodall/trainboard/internal/domain"
)

// signingKey signs test tokens. The client never verifies signatures, but
// signing real tokens keeps the fake honest about the wire format.
var signingKey = []byte("testutil-signing-key")

// taskState tracks one in-flight lookup task.
type taskState struct {
	remaining int // pending responses left before a terminal answer
	failWith  string
	result    []domain.Train
}

// FakeBackend simulates the backend API. Script its behavior through the
// exported fields before issuing client calls; zero values give a backend
// that answers synchronously and accepts everything.
type FakeBackend struct {
	Server *httptest.Server

	mu sync.Mutex

	// Trains is the result every lookup resolves to.
	Trains []domain.Train
	// PendingPolls is how many "pending" answers the status endpoint gives
	// before completing. Zero with Asynchronous unset means the lookup
	// itself answers synchronously with a bare result array.
	PendingPolls int
	// Asynchronous forces the task handshake even when PendingPolls is 0.
	Asynchronous bool
	// FailTaskWith, when non-empty, makes the task reach "failed" with this
	// message after PendingPolls pending answers.
	FailTaskWith string
	// FavouriteSuccess is the success flag the favourite endpoints return.
	FavouriteSuccess bool
	// LoginDetail, when non-empty, makes auth endpoints reject with 401 and
	// this structured detail message.
	LoginDetail string
	// TokenPermissions is the permissions claim issued tokens carry.
	TokenPermissions string

	// Request counters.
	LookupRequests int
	StatusRequests int
	AuthRequests   int

	profiles []domain.Profile
	nextID   int
	tasks    map[string]*taskState
	users    []domain.User
}

// NewFakeBackend starts the fake server. Callers own shutdown via Close.
func NewFakeBackend() *FakeBackend {
	f := &FakeBackend{
		FavouriteSuccess: true,
		TokenPermissions: "user",
		nextID:           1,
		tasks:            make(map[string]*taskState),
	}

	r := chi.NewRouter()
	r.Post("/auth/token", f.handleAuth)
	r.Post("/auth/signup", f.handleAuth)
	r.Get("/profile/", f.handleListProfiles)
	r.Post("/profile/", f.handleCreateProfile)
	r.Put("/profile/{id}", f.handleUpdateProfile)
	r.Delete("/profile/{id}", f.handleDeleteProfile)
	r.Put("/profile/{id}/favourite", f.handleFavourite)
	r.Delete("/profile/{id}/favourite", f.handleFavourite)
	r.Get("/train/train_routes/", f.handleLookup)
	r.Get("/train/train_routes/task_status/{taskID}", f.handleTaskStatus)
	r.Get("/users/", f.handleListUsers)
	r.Delete("/users/{id}", f.handleDeleteUser)

	f.Server = httptest.NewServer(r)
	return f
}

// Counts returns the request counters under the lock, so assertions do not
// race with handler goroutines.
func (f *FakeBackend) Counts() (lookups, statuses, auths int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LookupRequests, f.StatusRequests, f.AuthRequests
}

// URL returns the fake's base URL, to be used as the client's BaseURL.
func (f *FakeBackend) URL() string { return f.Server.URL }

// Close shuts the server down.
func (f *FakeBackend) Close() { f.Server.Close() }

// SeedProfiles installs the given profiles, assigning IDs after the highest
// seeded one for subsequent creates.
func (f *FakeBackend) SeedProfiles(profiles ...domain.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = append([]domain.Profile(nil), profiles...)
	for _, p := range profiles {
		if p.ID >= f.nextID {
			f.nextID = p.ID + 1
		}
	}
}

// SeedUsers installs the admin panel's user rows.
func (f *FakeBackend) SeedUsers(users ...domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append([]domain.User(nil), users...)
}

// Token issues a signed JWT with the given permissions claim and expiry,
// matching what the real token endpoint produces.
func Token(permissions string, expiresAt time.Time) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         "test-user",
		"permissions": permissions,
		"exp":         expiresAt.Unix(),
	})
	signed, err := tok.SignedString(signingKey)
	if err != nil {
		panic(err) // cannot happen with HS256 and a static key
	}
	return signed
}

// ---- handlers --------------------------------------------------------------

func (f *FakeBackend) handleAuth(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.AuthRequests++
	detail := f.LoginDetail
	perms := f.TokenPermissions
	f.mu.Unlock()

	if err := r.ParseForm(); err != nil || r.PostFormValue("username") == "" || r.PostFormValue("password") == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "username and password are required"})
		return
	}
	if detail != "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": detail})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": Token(perms, time.Now().Add(time.Hour)),
		"token_type":   "bearer",
	})
}

func (f *FakeBackend) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	if !f.authed(w, r) {
		return
	}
	f.mu.Lock()
	out := append([]domain.Profile(nil), f.profiles...)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeBackend) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	if !f.authed(w, r) {
		return
	}
	var body struct {
		Origins      []string `json:"origins"`
		Destinations []string `json:"destinations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
		return
	}
	f.mu.Lock()
	p := domain.Profile{ID: f.nextID, Origins: body.Origins, Destinations: body.Destinations}
	f.nextID++
	f.profiles = append(f.profiles, p)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (f *FakeBackend) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	if !f.authed(w, r) {
		return
	}
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	var body struct {
		Origins      []string `json:"origins"`
		Destinations []string `json:"destinations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.profiles {
		if p.ID == id {
			f.profiles[i].Origins = body.Origins
			f.profiles[i].Destinations = body.Destinations
			writeJSON(w, http.StatusOK, f.profiles[i])
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "profile not found"})
}

func (f *FakeBackend) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if !f.authed(w, r) {
		return
	}
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.profiles {
		if p.ID == id {
			f.profiles = append(f.profiles[:i], f.profiles[i+1:]...)
			writeJSON(w, http.StatusOK, nil)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "profile not found"})
}

func (f *FakeBackend) handleFavourite(w http.ResponseWriter, r *http.Request) {
	if !f.authed(w, r) {
		return
	}
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	set := r.Method == http.MethodPut

	f.mu.Lock()
	success := f.FavouriteSuccess
	if success {
		for i := range f.profiles {
			f.profiles[i].Favourite = set && f.profiles[i].ID == id
		}
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"success": success})
}

func (f *FakeBackend) handleLookup(w http.ResponseWriter, r *http.Request) {
	if !f.authed(w, r) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LookupRequests++

	if !f.Asynchronous && f.PendingPolls == 0 && f.FailTaskWith == "" {
		writeJSON(w, http.StatusOK, f.Trains)
		return
	}

	id := uuid.NewString()
	f.tasks[id] = &taskState{
		remaining: f.PendingPolls,
		failWith:  f.FailTaskWith,
		result:    f.Trains,
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":           "pending",
		"task_id":          id,
		"check_status_url": "/train/train_routes/task_status/" + id,
	})
}

func (f *FakeBackend) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	if !f.authed(w, r) {
		return
	}
	id := chi.URLParam(r, "taskID")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatusRequests++

	task, ok := f.tasks[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "unknown task"})
		return
	}
	if task.remaining > 0 {
		task.remaining--
		writeJSON(w, http.StatusOK, map[string]string{"status": "pending", "task_id": id})
		return
	}
	if task.failWith != "" {
		writeJSON(w, http.StatusOK, map[string]any{"status": "failed", "error": task.failWith})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "completed", "result": task.result})
}

func (f *FakeBackend) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !f.authed(w, r) {
		return
	}
	f.mu.Lock()
	out := append([]domain.User(nil), f.users...)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeBackend) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !f.authed(w, r) {
		return
	}
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.users {
		if u.ID == id {
			f.users = append(f.users[:i], f.users[i+1:]...)
			writeJSON(w, http.StatusOK, nil)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "user not found"})
}

// authed enforces the bearer requirement the real backend has on every
// non-auth route. The token is not signature-checked; presence is enough
// for the contract under test.
func (f *FakeBackend) authed(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
