package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"riberry/internal/api"
	"riberry/internal/schema"
	"riberry/internal/session"
)

// UserStore owns the session state: the logged-in user's profile and the
// initial token-check flag. It does not poll; profile loads are one-shot
// and re-run manually by login.
type UserStore struct {
	base
	client *api.Client
	creds  session.Store

	user        *schema.User
	initialLoad bool

	// now is injectable for token-expiry tests.
	now func() time.Time
}

func NewUserStore(client *api.Client, creds session.Store) *UserStore {
	return &UserStore{
		client:      client,
		creds:       creds,
		initialLoad: true,
		now:         time.Now,
	}
}

// Setup checks for a persisted token and attempts the profile load. The
// initial-load flag clears regardless of outcome: a failed load means
// logged out, not an error the caller retries.
func (s *UserStore) Setup(ctx context.Context) error {
	token, err := s.creds.Get(session.TokenName)
	if err == nil && token != "" && !session.TokenExpired(token, s.now()) {
		_ = s.LoadProfile(ctx)
	}
	s.apply(s.generation(), func() { s.initialLoad = false })
	return nil
}

// Login exchanges credentials for a token. An envelope error (bad
// credentials) surfaces to the caller and persists nothing; on success
// the token is stored and the profile reloaded.
func (s *UserStore) Login(ctx context.Context, username, password string) error {
	env, err := s.client.PostSession(ctx, username, password)
	if err != nil {
		return err
	}
	if err := env.Err(); err != nil {
		return err
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Token == "" {
		return fmt.Errorf("session response missing token")
	}
	if err := s.creds.Set(session.TokenName, payload.Token); err != nil {
		return fmt.Errorf("persist session token: %w", err)
	}
	return s.LoadProfile(ctx)
}

// Logout clears the persisted token and the in-memory user
// unconditionally.
func (s *UserStore) Logout() error {
	err := s.creds.Set(session.TokenName, "")
	// Bump the generation first so a profile load racing the logout
	// cannot re-establish the user afterward.
	s.invalidate()
	s.apply(s.generation(), func() { s.user = nil })
	return err
}

// LoadProfile fetches the current user with details expanded. Failure
// leaves prior state untouched.
func (s *UserStore) LoadProfile(ctx context.Context) error {
	gen := s.generation()
	env, err := s.client.SelfProfile(ctx, "details")
	if err != nil {
		return err
	}
	if err := env.Err(); err != nil {
		return err
	}
	user, err := schema.DecodeUser(env.Data)
	if err != nil {
		return err
	}
	s.apply(gen, func() { s.user = user })
	return nil
}

// LoggedIn reports whether a user is set.
func (s *UserStore) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// User returns the current profile, nil when logged out.
func (s *UserStore) User() *schema.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// InitialLoad reports whether the startup token check is still pending.
func (s *UserStore) InitialLoad() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialLoad
}
