package api

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/smartlead-sync/internal/cache"
	"github.com/ignite/smartlead-sync/internal/reconcile"
	"github.com/ignite/smartlead-sync/internal/smartlead"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("api: session not found")

// Session carries one caller's wizard state: the validated client, the
// selected campaign, the uploaded emails, and the reconciliation result.
// Each step writes the fields the next step reads.
type Session struct {
	ID        string
	CreatedAt time.Time

	Client    *smartlead.Client
	Inventory cache.Inventory

	SelectedCampaign *smartlead.Campaign
	Emails           []string
	Mappings         reconcile.Lookup
	Analysis         *reconcile.Result
	RunID            string
}

// ResetPipeline clears everything downstream of the client, returning
// the session to the campaign-selection step.
func (s *Session) ResetPipeline() {
	s.SelectedCampaign = nil
	s.ResetUpload()
}

// ResetUpload clears the uploaded emails and everything derived from
// them. A fresh CSV invalidates any prior analysis and run.
func (s *Session) ResetUpload() {
	s.Emails = nil
	s.Mappings = nil
	s.Analysis = nil
	s.RunID = ""
}

// SessionStore holds active sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Create registers a new session around a validated client.
func (st *SessionStore) Create(client *smartlead.Client, inventory cache.Inventory) *Session {
	sess := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Client:    client,
		Inventory: inventory,
	}
	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()
	return sess
}

// Get looks up a session by ID.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes a session. Deleting an unknown ID is a no-op.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}
