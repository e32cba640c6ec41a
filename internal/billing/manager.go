package billing

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/events"
)

// Manager hands out one Session per POS terminal, creating it on first use.
// Sessions are volatile: a restart starts every terminal from a fresh tab.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	Store      InvoiceCreator
	Events     *events.Bus
	DefaultTax decimal.Decimal
	Now        func() time.Time
	Logger     *zerolog.Logger
}

// NewManager constructs an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Session returns the terminal's session, creating it when absent. An empty
// terminal id shares the "default" session.
func (m *Manager) Session(terminalID string) *Session {
	key := strings.TrimSpace(terminalID)
	if key == "" {
		key = "default"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s
	}
	s := NewSession(SessionConfig{
		Store:      m.Store,
		Events:     m.Events,
		DefaultTax: m.DefaultTax,
		Now:        m.Now,
		Logger:     m.Logger,
	})
	m.sessions[key] = s
	return s
}

// Terminals reports the number of live sessions, exposed as a gauge.
func (m *Manager) Terminals() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
