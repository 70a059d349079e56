package wizard

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/physlab/inquiry-tutor/internal/docparse"
	"github.com/physlab/inquiry-tutor/internal/model"
)

const sessionTTL = 6 * time.Hour

// Session is the per-learner wizard state, keyed by a random cookie token.
// One goroutine per request may touch it; the registry lock only guards the
// token map, so handlers serialize access per session via the mutex here.
type Session struct {
	mu sync.Mutex

	Token     string
	Step      model.Step
	ExpiresAt time.Time

	StudentNumber string
	Name          string
	Email         string

	Topic      string
	Sections   docparse.Sections
	UploadPath string

	RecordID int64

	// Turns is the in-progress conversation for the current stage;
	// Completed archives each finished stage's turns in order.
	Turns     []model.Turn
	Completed [][]model.Turn

	Summaries [model.NumStages]string
	Emailed   bool
}

// Lock serializes handler access to the session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// Registry holds live wizard sessions in memory. Sessions are transient;
// everything worth keeping is written to the store as the wizard advances.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a new session at the start step.
func (r *Registry) Create() (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		Token:     token,
		Step:      model.StepStart,
		ExpiresAt: time.Now().Add(sessionTTL),
	}
	r.mu.Lock()
	r.sessions[token] = sess
	r.mu.Unlock()
	return sess, nil
}

// Get returns the session for token, or nil if absent or expired.
func (r *Registry) Get(token string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[token]
	if !ok {
		return nil
	}
	if time.Now().After(sess.ExpiresAt) {
		delete(r.sessions, token)
		return nil
	}
	return sess
}

// Delete removes a session.
func (r *Registry) Delete(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
