// Package session keeps one checkout pipeline per shopper session,
// keyed by an opaque id the UI carries in a header.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	appcheckout "github.com/nvalera/storefront-checkout/internal/application/checkout"
	"github.com/nvalera/storefront-checkout/internal/infrastructure/api"
)

// Session bundles everything owned by one shopper: the checkout
// orchestrator and the auth gateway bound to that shopper's credential
// store.
type Session struct {
	ID       string
	Checkout *appcheckout.Orchestrator
	Auth     *api.AuthGateway

	lastSeen time.Time
}

// Factory wires a fresh Session for a new session id.
type Factory func(sessionID string) *Session

type IDGenerator interface {
	NewID() string
}

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  Factory
	ids      IDGenerator
	idleTTL  time.Duration
	log      *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
}

func NewManager(factory Factory, ids IDGenerator, idleTTL time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		factory:  factory,
		ids:      ids,
		idleTTL:  idleTTL,
		log:      logger.With(zap.String("component", "session_manager")),
	}
}

// Resolve returns the session for id, creating one when id is empty or
// unknown. The returned session's ID is authoritative; handlers echo it
// back to the client.
func (m *Manager) Resolve(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if s, ok := m.sessions[id]; ok {
			s.lastSeen = time.Now()
			return s
		}
	}

	newID := m.ids.NewID()
	s := m.factory(newID)
	s.ID = newID
	s.lastSeen = time.Now()
	m.sessions[newID] = s
	m.log.Info("session_created", zap.String("session_id", newID))
	return s
}

// Start launches the idle sweeper. Expired sessions are treated as
// abandoned checkouts: the in-flight delivery quote is discarded, but
// nothing payment-related is cancelled.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		bg, cancel := context.WithCancel(ctx)
		m.cancel = cancel
		go m.sweepLoop(bg)
	})
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
	})
}

func (m *Manager) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(m.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.idleTTL)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Checkout.Abandon()
		m.log.Info("session_expired", zap.String("session_id", s.ID))
	}
}
