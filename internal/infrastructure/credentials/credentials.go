// Package credentials owns the session credential pair. It is the only
// component allowed to mutate tokens; everything else observes
// authenticated vs unauthenticated through the request client.
package credentials

import (
	"context"
	"sync"
)

// Credentials is the access/refresh pair plus the persistence
// preference captured at login.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Remember     bool   `json:"remember"`
}

func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Store persists the credential pair. Get returns zero Credentials when
// nothing is stored.
type Store interface {
	Get(ctx context.Context) (Credentials, error)
	Set(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}

// MemoryStore is the session-scoped store: credentials live for the
// process lifetime only.
type MemoryStore struct {
	mu    sync.RWMutex
	creds Credentials
	set   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(ctx context.Context) (Credentials, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return Credentials{}, nil
	}
	return s.creds, nil
}

func (s *MemoryStore) Set(ctx context.Context, creds Credentials) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	s.set = true
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{}
	s.set = false
	return nil
}

// PreferenceStore routes writes by the Remember preference: remembered
// credentials go to the durable store, the rest stay session-scoped.
// Reads prefer the session store so a fresh login wins over a stale
// remembered pair. A refreshed credential is written back to whichever
// store the original came from, since Remember travels with the pair.
type PreferenceStore struct {
	session Store
	durable Store
}

func NewPreferenceStore(session, durable Store) *PreferenceStore {
	return &PreferenceStore{session: session, durable: durable}
}

func (s *PreferenceStore) Get(ctx context.Context) (Credentials, error) {
	creds, err := s.session.Get(ctx)
	if err != nil {
		return Credentials{}, err
	}
	if !creds.Empty() || s.durable == nil {
		return creds, nil
	}
	return s.durable.Get(ctx)
}

func (s *PreferenceStore) Set(ctx context.Context, creds Credentials) error {
	if creds.Remember && s.durable != nil {
		if err := s.session.Clear(ctx); err != nil {
			return err
		}
		return s.durable.Set(ctx, creds)
	}
	return s.session.Set(ctx, creds)
}

func (s *PreferenceStore) Clear(ctx context.Context) error {
	if err := s.session.Clear(ctx); err != nil {
		return err
	}
	if s.durable != nil {
		return s.durable.Clear(ctx)
	}
	return nil
}
