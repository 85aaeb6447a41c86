package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/navimind/navimind/pkg/config"
	"github.com/navimind/navimind/pkg/llm"
	"github.com/navimind/navimind/pkg/models"
	"github.com/navimind/navimind/pkg/storage"
)

// ErrNotFound is returned when a session ID matches nothing in memory or
// in the store.
var ErrNotFound = errors.New("session not found")

// Manager owns the engine registry. Engines live in memory for the life of
// the process; sessions missing from memory are rehydrated from the store
// on first access.
type Manager struct {
	mu      sync.Mutex
	store   storage.Store
	srv     *config.ServerConfig
	log     *slog.Logger
	engines map[string]*Engine

	// NewLLMClient overrides the client factory on every engine this
	// manager creates. Nil keeps the default provider constructors.
	NewLLMClient func(provider, apiKey, model string) (llm.Client, error)
}

// NewManager builds the registry over the given store.
func NewManager(store storage.Store, srv *config.ServerConfig, logger *slog.Logger) *Manager {
	return &Manager{
		store:   store,
		srv:     srv,
		log:     logger,
		engines: make(map[string]*Engine),
	}
}

// Create provisions a new session and returns its engine.
func (m *Manager) Create(ctx context.Context, extensionID string, rawCfg json.RawMessage) (*Engine, error) {
	cfg, err := config.SessionConfigFromJSON(rawCfg)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &models.Session{
		ID:               uuid.New().String(),
		ExtensionID:      extensionID,
		CurrentTaskIndex: -1,
		ExecutionState:   models.StateIdle,
		Config:           cfg,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	eng := m.newEngine(sess)

	blob, err := sess.Serialize()
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, "session:"+sess.ID, blob); err != nil {
		eng.Close()
		return nil, err
	}

	m.mu.Lock()
	m.engines[sess.ID] = eng
	m.mu.Unlock()

	m.log.Info("session created", "session_id", sess.ID, "extension_id", extensionID)
	return eng, nil
}

// Get returns the engine for a session, rehydrating it from the store when
// the process has not seen it yet. A rehydrated engine has no LLM client
// until the next execute call supplies credentials.
func (m *Manager) Get(ctx context.Context, id string) (*Engine, error) {
	m.mu.Lock()
	if eng, ok := m.engines[id]; ok {
		m.mu.Unlock()
		return eng, nil
	}
	m.mu.Unlock()

	blob, err := m.store.Get(ctx, "session:"+id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess, err := models.DeserializeSession(blob)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have rehydrated it while we read the store.
	if eng, ok := m.engines[id]; ok {
		return eng, nil
	}
	eng := m.newEngine(sess)
	m.engines[id] = eng
	m.log.Info("session rehydrated", "session_id", id, "state", sess.ExecutionState)
	return eng, nil
}

func (m *Manager) newEngine(sess *models.Session) *Engine {
	eng := NewEngine(sess, m.store, m.log)
	if m.NewLLMClient != nil {
		eng.newClient = m.NewLLMClient
	}
	return eng
}

// ApplyDefaults fills the provider, model, and API key from the server
// environment when the request left them empty.
func (m *Manager) ApplyDefaults(opts *ExecuteOptions) {
	if opts.Provider == "" {
		opts.Provider = m.srv.DefaultProvider
	}
	if opts.Model == "" {
		opts.Model = m.srv.DefaultModel
	}
	if opts.APIKey == "" {
		opts.APIKey = m.srv.DefaultAPIKey
	}
}

// Close shuts down every live engine.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, eng := range m.engines {
		eng.Close()
	}
	m.engines = make(map[string]*Engine)
}
