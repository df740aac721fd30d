package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// authServer минимальная реализация /api/auth/*
type authServer struct {
	mu           sync.Mutex
	ttl          time.Duration
	user         User
	access       map[string]bool
	refresh      map[string]bool
	seq          int
	refreshCalls int
	// refreshDelay задерживает ответ на /refresh до отмены запроса клиентом
	refreshDelay time.Duration
}

func newAuthServer(ttl time.Duration) *authServer {
	return &authServer{
		ttl:     ttl,
		user:    User{ID: uuid.New(), Email: "alex@example.com"},
		access:  map[string]bool{},
		refresh: map[string]bool{},
	}
}

func (a *authServer) issue() map[string]any {
	a.seq++
	access := fmt.Sprintf("access-%d", a.seq)
	refresh := fmt.Sprintf("refresh-%d", a.seq)
	a.access[access] = true
	a.refresh[refresh] = true
	return map[string]any{
		"user": a.user,
		"session": map[string]any{
			"access_token":  access,
			"refresh_token": refresh,
			"expires_at":    time.Now().Add(a.ttl),
		},
	}
}

func (a *authServer) seed() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.issue()["session"].(map[string]any)
	return Session{
		AccessToken:  out["access_token"].(string),
		RefreshToken: out["refresh_token"].(string),
		ExpiresAt:    out["expires_at"].(time.Time),
		User:         a.user,
	}
}

func (a *authServer) setRefreshDelay(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshDelay = d
}

func (a *authServer) refreshCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshCalls
}

func (a *authServer) validRefresh(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refresh[token]
}

func (a *authServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/auth/refresh" {
		a.mu.Lock()
		a.refreshCalls++
		delay := a.refreshDelay
		a.mu.Unlock()

		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var body map[string]string
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	unauthorized := func() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "kind": "unauthorized"})
	}

	switch r.Method + " " + r.URL.Path {
	case "POST /api/auth/signin":
		if body["password"] != "hunter22" {
			unauthorized()
			return
		}
		writeJSON(w, http.StatusOK, a.issue())
	case "POST /api/auth/signup":
		out := a.issue()
		out["profile"] = nil
		out["profile_error"] = map[string]string{"kind": "conflict", "message": "username taken"}
		writeJSON(w, http.StatusCreated, out)
	case "POST /api/auth/refresh":
		if !a.refresh[body["refresh_token"]] {
			unauthorized()
			return
		}
		delete(a.refresh, body["refresh_token"])
		writeJSON(w, http.StatusOK, a.issue())
	case "POST /api/auth/signout":
		delete(a.refresh, body["refresh_token"])
		w.WriteHeader(http.StatusNoContent)
	case "GET /api/auth/session":
		if !a.access[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")] {
			unauthorized()
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": a.user})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type SessionHolderTestSuite struct {
	suite.Suite
	auth   *authServer
	srv    *httptest.Server
	client *Client
	store  *MemorySessionStore
}

func (s *SessionHolderTestSuite) SetupTest() {
	s.auth = newAuthServer(time.Hour)
	s.srv = httptest.NewServer(s.auth)
	var err error
	s.client, err = New(s.srv.URL)
	s.Require().NoError(err)
	s.store = NewMemorySessionStore()
}

func (s *SessionHolderTestSuite) TearDownTest() {
	s.srv.Close()
}

func (s *SessionHolderTestSuite) holder(opts ...HolderOption) *SessionHolder {
	h := NewSessionHolder(s.client, append([]HolderOption{WithSessionStore(s.store)}, opts...)...)
	s.T().Cleanup(h.Close)
	return h
}

func (s *SessionHolderTestSuite) next(ch <-chan Event) Event {
	select {
	case ev, ok := <-ch:
		s.Require().True(ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		s.FailNow("no event")
		return Event{}
	}
}

func (s *SessionHolderTestSuite) TestLoadingToAnonymousWithoutStoredSession() {
	h := s.holder()
	s.Equal(StateLoading, h.State())

	s.Require().NoError(h.Start(context.Background()))
	state, err := h.Wait(context.Background())
	s.Require().NoError(err)
	s.Equal(StateAnonymous, state)
	s.Empty(h.AccessToken())
}

func (s *SessionHolderTestSuite) TestLoadingToAuthenticatedWithValidSession() {
	stored := s.auth.seed()
	s.Require().NoError(s.store.Save(context.Background(), stored))

	h := s.holder()
	s.Require().NoError(h.Start(context.Background()))
	s.Equal(StateAuthenticated, h.State())
	s.Equal(stored.AccessToken, h.AccessToken())
	s.Equal(0, s.auth.refreshCalls)
}

func (s *SessionHolderTestSuite) TestExpiredSessionIsRefreshedOnStart() {
	stored := s.auth.seed()
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	s.Require().NoError(s.store.Save(context.Background(), stored))

	h := s.holder()
	s.Require().NoError(h.Start(context.Background()))
	s.Equal(StateAuthenticated, h.State())
	s.NotEqual(stored.AccessToken, h.AccessToken())

	saved, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Equal(h.AccessToken(), saved.AccessToken)
}

func (s *SessionHolderTestSuite) TestRevokedSessionResolvesAnonymous() {
	s.Require().NoError(s.store.Save(context.Background(), Session{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		ExpiresAt:    time.Now().Add(time.Hour),
	}))

	h := s.holder()
	s.Require().NoError(h.Start(context.Background()))
	s.Equal(StateAnonymous, h.State())

	saved, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Nil(saved)
}

func (s *SessionHolderTestSuite) TestNetworkFailureOnStartIsReported() {
	s.Require().NoError(s.store.Save(context.Background(), s.auth.seed()))
	s.srv.Close()

	h := s.holder()
	err := h.Start(context.Background())
	s.True(IsKind(err, KindNetwork))
	s.Equal(StateAnonymous, h.State())
}

func (s *SessionHolderTestSuite) TestSubscribersReceiveEventsInOrder() {
	h := s.holder()
	s.Require().NoError(h.Start(context.Background()))

	events, cancel := h.Subscribe()
	defer cancel()

	_, err := h.SignIn(context.Background(), "alex@example.com", "hunter22")
	s.Require().NoError(err)
	s.Require().NoError(h.Refresh(context.Background()))
	s.Require().NoError(h.SignOut(context.Background()))

	first := s.next(events)
	s.Equal(EventSignedIn, first.Type)
	s.Equal("alex@example.com", first.Session.User.Email)
	s.Equal(EventTokenRefreshed, s.next(events).Type)
	s.Equal(EventSignedOut, s.next(events).Type)
	s.Equal(StateAnonymous, h.State())

	// Повторный выход ничего не делает
	s.Require().NoError(h.SignOut(context.Background()))
}

func (s *SessionHolderTestSuite) TestSignInFailureKeepsState() {
	h := s.holder()
	s.Require().NoError(h.Start(context.Background()))

	_, err := h.SignIn(context.Background(), "alex@example.com", "wrong")
	s.True(IsKind(err, KindUnauthorized))
	s.Equal(StateAnonymous, h.State())
}

func (s *SessionHolderTestSuite) TestSignUpSurfacesProfileError() {
	h := s.holder()
	s.Require().NoError(h.Start(context.Background()))

	result, err := h.SignUp(context.Background(), SignUpInput{Email: "alex@example.com", Password: "hunter22", FullName: "Alex"})
	s.Require().NoError(err)
	s.Nil(result.Profile)
	s.Require().NotNil(result.ProfileError)
	s.Equal(KindConflict, result.ProfileError.Kind)
	s.Equal(StateAuthenticated, h.State())
}

func (s *SessionHolderTestSuite) TestBackgroundRefreshBeforeExpiry() {
	h := s.holder(WithRefreshLeeway(30 * time.Minute))
	s.Require().NoError(h.Start(context.Background()))
	events, cancel := h.Subscribe()
	defer cancel()

	s.auth.mu.Lock()
	s.auth.ttl = time.Second
	s.auth.mu.Unlock()

	_, err := h.SignIn(context.Background(), "alex@example.com", "hunter22")
	s.Require().NoError(err)
	s.Equal(EventSignedIn, s.next(events).Type)

	s.auth.mu.Lock()
	s.auth.ttl = time.Hour
	s.auth.mu.Unlock()

	s.Equal(EventTokenRefreshed, s.next(events).Type)
}

func (s *SessionHolderTestSuite) TestRejectedRefreshSignsOut() {
	h := s.holder()
	s.Require().NoError(h.Start(context.Background()))
	_, err := h.SignIn(context.Background(), "alex@example.com", "hunter22")
	s.Require().NoError(err)

	events, cancel := h.Subscribe()
	defer cancel()

	s.auth.mu.Lock()
	s.auth.refresh = map[string]bool{}
	s.auth.mu.Unlock()

	err = h.Refresh(context.Background())
	s.True(IsKind(err, KindUnauthorized))
	s.Equal(EventSignedOut, s.next(events).Type)
	s.Equal(StateAnonymous, h.State())
}

func (s *SessionHolderTestSuite) drain(ch <-chan Event) []EventType {
	var out []EventType
	for {
		select {
		case ev := <-ch:
			out = append(out, ev.Type)
		case <-time.After(200 * time.Millisecond):
			return out
		}
	}
}

func (s *SessionHolderTestSuite) TestConcurrentRefreshesKeepSession() {
	h := s.holder()
	s.Require().NoError(h.Start(context.Background()))
	_, err := h.SignIn(context.Background(), "alex@example.com", "hunter22")
	s.Require().NoError(err)

	events, cancel := h.Subscribe()
	defer cancel()
	s.auth.setRefreshDelay(50 * time.Millisecond)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	s.NoError(errs[0])
	s.NoError(errs[1])
	s.Equal(StateAuthenticated, h.State())

	got := s.drain(events)
	s.NotContains(got, EventSignedOut)
	s.Contains(got, EventTokenRefreshed)

	current, ok := h.Session()
	s.Require().True(ok)
	s.True(s.auth.validRefresh(current.RefreshToken))

	saved, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Require().NotNil(saved)
	s.Equal(current.RefreshToken, saved.RefreshToken)
}

func (s *SessionHolderTestSuite) TestSignOutWaitsForRefreshInFlight() {
	h := s.holder()
	s.Require().NoError(h.Start(context.Background()))
	_, err := h.SignIn(context.Background(), "alex@example.com", "hunter22")
	s.Require().NoError(err)

	events, cancel := h.Subscribe()
	defer cancel()
	s.auth.setRefreshDelay(100 * time.Millisecond)

	refreshed := make(chan error, 1)
	go func() { refreshed <- h.Refresh(context.Background()) }()
	s.Eventually(func() bool { return s.auth.refreshCount() > 0 }, time.Second, 5*time.Millisecond)

	s.Require().NoError(h.SignOut(context.Background()))
	s.NoError(<-refreshed)

	s.Equal(StateAnonymous, h.State())
	s.Empty(h.AccessToken())
	s.Equal([]EventType{EventTokenRefreshed, EventSignedOut}, s.drain(events))

	saved, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Nil(saved)

	// Выданный при обновлении токен тоже отозван
	s.auth.mu.Lock()
	s.Empty(s.auth.refresh)
	s.auth.mu.Unlock()
}

func (s *SessionHolderTestSuite) TestSignInDuringRefreshWins() {
	h := s.holder()
	s.Require().NoError(h.Start(context.Background()))
	_, err := h.SignIn(context.Background(), "alex@example.com", "hunter22")
	s.Require().NoError(err)
	s.auth.setRefreshDelay(100 * time.Millisecond)

	refreshed := make(chan error, 1)
	go func() { refreshed <- h.Refresh(context.Background()) }()
	s.Eventually(func() bool { return s.auth.refreshCount() > 0 }, time.Second, 5*time.Millisecond)

	signedIn, err := h.SignIn(context.Background(), "alex@example.com", "hunter22")
	s.Require().NoError(err)
	s.NoError(<-refreshed)

	s.Equal(signedIn.AccessToken, h.AccessToken())
}

func (s *SessionHolderTestSuite) TestCloseCancelsBackgroundRefresh() {
	h := NewSessionHolder(s.client, WithSessionStore(s.store), WithRefreshLeeway(30*time.Minute))
	s.Require().NoError(h.Start(context.Background()))

	s.auth.mu.Lock()
	s.auth.ttl = time.Second
	s.auth.refreshDelay = 10 * time.Second
	s.auth.mu.Unlock()

	_, err := h.SignIn(context.Background(), "alex@example.com", "hunter22")
	s.Require().NoError(err)
	s.Eventually(func() bool { return s.auth.refreshCount() > 0 }, time.Second, 5*time.Millisecond)

	started := time.Now()
	h.Close()
	s.Less(time.Since(started), 2*time.Second)
	s.Equal(StateAuthenticated, h.State())
}

func (s *SessionHolderTestSuite) TestCloseClosesSubscribers() {
	h := NewSessionHolder(s.client)
	s.Require().NoError(h.Start(context.Background()))
	events, _ := h.Subscribe()

	h.Close()
	_, ok := <-events
	s.False(ok)

	late, _ := h.Subscribe()
	_, ok = <-late
	s.False(ok)
	s.Error(h.Start(context.Background()))
}

func TestSessionHolderTestSuite(t *testing.T) {
	suite.Run(t, new(SessionHolderTestSuite))
}

func TestFileSessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewFileSessionStore(filepath.Join(t.TempDir(), "auth", "session.json"))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	session := Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second)}
	require.NoError(t, store.Save(ctx, session))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "r", loaded.RefreshToken)
	assert.True(t, session.ExpiresAt.Equal(loaded.ExpiresAt))

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := Session{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, s.Expired(now, 0))
	assert.True(t, s.Expired(now, 2*time.Minute))
}
