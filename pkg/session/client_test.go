package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAPI stands in for the auth endpoints. Tokens are opaque strings; the
// access tokens in validAccess are the only ones the profile endpoint
// accepts, and validRefresh gates the refresh endpoint.
type fakeAPI struct {
	mu           sync.Mutex
	refreshHits  atomic.Int64
	validAccess  map[string]bool
	validRefresh map[string]bool
	mintSeq      int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		validAccess:  map[string]bool{},
		validRefresh: map[string]bool{},
	}
}

func (f *fakeAPI) mintPair() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mintSeq++
	access := fmt.Sprintf("access-%d", f.mintSeq)
	refresh := fmt.Sprintf("refresh-%d", f.mintSeq)
	f.validAccess[access] = true
	f.validRefresh[refresh] = true
	return access, refresh
}

func (f *fakeAPI) accessOK(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validAccess[token]
}

func (f *fakeAPI) refreshOK(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validRefresh[token]
}

func (f *fakeAPI) revokeAccess(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.validAccess, token)
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req.Email {
		case "inactive@example.com":
			w.WriteHeader(http.StatusForbidden)
			return
		case "owner@example.com":
			if req.Password != "correct-horse" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		default:
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		access, refresh := f.mintPair()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":         Principal{ID: "p-1", Email: req.Email, Role: "admin", Status: "active"},
			"accessToken":  access,
			"refreshToken": refresh,
		})
	})

	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshHits.Add(1)
		// Hold the exchange open long enough for concurrent callers to pile
		// up behind it.
		time.Sleep(50 * time.Millisecond)
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !f.refreshOK(req.RefreshToken) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		access, refresh := f.mintPair()
		_ = json.NewEncoder(w).Encode(map[string]string{
			"accessToken":  access,
			"refreshToken": refresh,
		})
	})

	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/users/profile", func(w http.ResponseWriter, r *http.Request) {
		token, _ := bearerToken(r)
		if !f.accessOK(token) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": Principal{ID: "p-1", Email: "owner@example.com", Role: "admin", Status: "active"},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	return header[len(prefix):], true
}

func loggedInClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := api.server(t)
	client := New(srv.URL)
	if _, err := client.Login(context.Background(), "owner@example.com", "correct-horse"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return client
}

func TestConcurrentRefreshSharesOneExchange(t *testing.T) {
	api := newFakeAPI()
	client := loggedInClient(t, api)
	api.refreshHits.Store(0)

	const callers = 12
	var (
		start   sync.WaitGroup
		done    sync.WaitGroup
		release = make(chan struct{})
		tokens  [callers]string
		errs    [callers]error
	)
	start.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			start.Done()
			<-release
			tokens[i], errs[i] = client.Refresh(context.Background())
		}(i)
	}
	start.Wait()
	close(release)
	done.Wait()

	if hits := api.refreshHits.Load(); hits != 1 {
		t.Fatalf("refresh endpoint hit %d times, want 1", hits)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if tokens[i] != tokens[0] {
			t.Fatalf("caller %d got token %q, caller 0 got %q", i, tokens[i], tokens[0])
		}
	}
	if client.CurrentAccessToken() != tokens[0] {
		t.Fatal("client access token does not match the refreshed one")
	}
}

func TestRefreshRejectionClearsSession(t *testing.T) {
	api := newFakeAPI()
	client := loggedInClient(t, api)

	// Invalidate server-side state so the next refresh is rejected.
	api.mu.Lock()
	api.validRefresh = map[string]bool{}
	api.mu.Unlock()

	if _, err := client.Refresh(context.Background()); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if client.CurrentAccessToken() != "" {
		t.Fatal("access token survived a rejected refresh")
	}
	if client.CurrentPrincipal() != nil {
		t.Fatal("principal survived a rejected refresh")
	}
	access, refresh, err := client.store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if access != "" || refresh != "" {
		t.Fatal("durable store still holds tokens after rejected refresh")
	}

	// Without a refresh token the next attempt fails locally.
	hits := api.refreshHits.Load()
	if _, err := client.Refresh(context.Background()); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if api.refreshHits.Load() != hits {
		t.Fatal("refresh without a token still called the server")
	}
}

func TestBootstrapRestoresSession(t *testing.T) {
	api := newFakeAPI()
	srv := api.server(t)
	access, refresh := api.mintPair()

	store := &MemoryStore{}
	if err := store.Save(access, refresh); err != nil {
		t.Fatalf("save: %v", err)
	}

	client := New(srv.URL, WithStore(store))
	principal, err := client.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if principal == nil || principal.Email != "owner@example.com" {
		t.Fatalf("principal = %+v", principal)
	}
	if client.CurrentAccessToken() != access {
		t.Fatal("bootstrap replaced a still-valid access token")
	}
}

func TestBootstrapRefreshesExpiredAccessToken(t *testing.T) {
	api := newFakeAPI()
	srv := api.server(t)
	access, refresh := api.mintPair()
	api.revokeAccess(access)

	store := &MemoryStore{}
	if err := store.Save(access, refresh); err != nil {
		t.Fatalf("save: %v", err)
	}

	client := New(srv.URL, WithStore(store))
	principal, err := client.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if principal == nil {
		t.Fatal("expected a restored principal after refresh")
	}
	if hits := api.refreshHits.Load(); hits != 1 {
		t.Fatalf("refresh endpoint hit %d times, want 1", hits)
	}
	if client.CurrentAccessToken() == access {
		t.Fatal("access token was not replaced")
	}
}

func TestBootstrapDeadSessionIsAnonymous(t *testing.T) {
	api := newFakeAPI()
	srv := api.server(t)

	store := &MemoryStore{}
	if err := store.Save("stale-access", "stale-refresh"); err != nil {
		t.Fatalf("save: %v", err)
	}

	client := New(srv.URL, WithStore(store))
	principal, err := client.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if principal != nil {
		t.Fatalf("principal = %+v, want nil", principal)
	}
	access, refresh, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if access != "" || refresh != "" {
		t.Fatal("dead tokens were not cleared from the store")
	}
}

func TestBootstrapEmptyStore(t *testing.T) {
	api := newFakeAPI()
	srv := api.server(t)

	client := New(srv.URL)
	principal, err := client.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if principal != nil {
		t.Fatal("empty store should bootstrap to anonymous")
	}
}

func TestLoginErrorMapping(t *testing.T) {
	api := newFakeAPI()
	srv := api.server(t)
	client := New(srv.URL)

	ctx := context.Background()
	if _, err := client.Login(ctx, "owner@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := client.Login(ctx, "inactive@example.com", "whatever"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("inactive account: err = %v, want ErrAccountInactive", err)
	}
	if client.CurrentAccessToken() != "" {
		t.Fatal("failed logins must not record tokens")
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	api := newFakeAPI()
	client := loggedInClient(t, api)

	if err := client.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if client.CurrentAccessToken() != "" || client.CurrentPrincipal() != nil {
		t.Fatal("logout left session state behind")
	}
	access, refresh, err := client.store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if access != "" || refresh != "" {
		t.Fatal("logout left tokens in the store")
	}
}

func TestDoRetriesOnceAfterRefresh(t *testing.T) {
	api := newFakeAPI()
	client := loggedInClient(t, api)

	// Expire the access token server-side; the refresh token stays valid.
	api.revokeAccess(client.CurrentAccessToken())

	var out struct {
		User Principal `json:"user"`
	}
	if err := client.Do(context.Background(), http.MethodGet, "/api/users/profile", nil, &out); err != nil {
		t.Fatalf("do: %v", err)
	}
	if out.User.ID != "p-1" {
		t.Fatalf("user = %+v", out.User)
	}
	if hits := api.refreshHits.Load(); hits != 1 {
		t.Fatalf("refresh endpoint hit %d times, want 1", hits)
	}
}
