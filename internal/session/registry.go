package session

import (
	"sort"
	"sync"
	"time"

	"domobot/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EvictFunc is called with the session id of every entry the registry
// drops, whether by age or by the size limit. Callers use it to cancel
// pending message deletions tied to the session.
type EvictFunc func(sessionID string)

type entry struct {
	sessionID    string
	userID       int64
	createdAt    time.Time
	lastAccessed time.Time
}

// Registry tracks one active search session per user. It is bounded:
// sessions expire after maxAge and the oldest entries are evicted once
// the limit is reached, so an abandoned session never leaks.
type Registry struct {
	mu      sync.Mutex
	byUser  map[int64]*entry
	maxAge  time.Duration
	limit   int
	onEvict EvictFunc
	logger  *zerolog.Logger

	lastCleanup     time.Time
	cleanupInterval time.Duration
}

type Options struct {
	MaxAge  time.Duration
	Limit   int
	OnEvict EvictFunc
}

func NewRegistry(opts Options, logger *zerolog.Logger) *Registry {
	if opts.MaxAge <= 0 {
		opts.MaxAge = models.DefaultSessionMaxAge
	}
	if opts.Limit <= 0 {
		opts.Limit = models.DefaultSessionLimit
	}
	return &Registry{
		byUser:          make(map[int64]*entry),
		maxAge:          opts.MaxAge,
		limit:           opts.Limit,
		onEvict:         opts.OnEvict,
		logger:          logger,
		lastCleanup:     time.Now(),
		cleanupInterval: 5 * time.Minute,
	}
}

// Open starts a new session for the user and returns its id. An existing
// session for the same user is evicted first.
func (r *Registry) Open(userID int64) string {
	var evicted []string

	r.mu.Lock()
	now := time.Now()
	if prev, ok := r.byUser[userID]; ok {
		evicted = append(evicted, prev.sessionID)
		delete(r.byUser, userID)
	}
	id := uuid.NewString()
	r.byUser[userID] = &entry{
		sessionID:    id,
		userID:       userID,
		createdAt:    now,
		lastAccessed: now,
	}

	if now.Sub(r.lastCleanup) > r.cleanupInterval {
		evicted = append(evicted, r.dropExpiredLocked(now)...)
		r.lastCleanup = now
	}
	evicted = append(evicted, r.enforceLimitLocked(userID)...)
	r.mu.Unlock()

	r.notify(evicted)
	r.logger.Debug().Int64("user_id", userID).Str("session_id", id).Msg("Сессия открыта")
	return id
}

// Lookup returns the user's active session id. Expired sessions are
// evicted on access.
func (r *Registry) Lookup(userID int64) (string, bool) {
	var evicted []string

	r.mu.Lock()
	e, ok := r.byUser[userID]
	if !ok {
		r.mu.Unlock()
		return "", false
	}
	now := time.Now()
	if now.Sub(e.createdAt) > r.maxAge {
		evicted = append(evicted, e.sessionID)
		delete(r.byUser, userID)
		r.mu.Unlock()
		r.notify(evicted)
		return "", false
	}
	e.lastAccessed = now
	id := e.sessionID
	r.mu.Unlock()
	return id, true
}

// Close removes the user's session without invoking the eviction hook:
// the caller closing a session cancels its tasks itself. Returns the
// closed session id.
func (r *Registry) Close(userID int64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byUser[userID]
	if !ok {
		return "", false
	}
	delete(r.byUser, userID)
	return e.sessionID, true
}

// Sweep drops every expired session and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	evicted := r.dropExpiredLocked(time.Now())
	r.mu.Unlock()

	r.notify(evicted)
	return len(evicted)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}

func (r *Registry) dropExpiredLocked(now time.Time) []string {
	var evicted []string
	for userID, e := range r.byUser {
		if now.Sub(e.createdAt) > r.maxAge {
			evicted = append(evicted, e.sessionID)
			delete(r.byUser, userID)
		}
	}
	if len(evicted) > 0 {
		r.logger.Info().Int("count", len(evicted)).Msg("Expired sessions removed")
	}
	return evicted
}

// enforceLimitLocked evicts the least recently used sessions when the
// registry grows past its limit. The session of keepUserID is never
// evicted here, it was just opened.
func (r *Registry) enforceLimitLocked(keepUserID int64) []string {
	if len(r.byUser) <= r.limit {
		return nil
	}

	type candidate struct {
		userID       int64
		sessionID    string
		lastAccessed time.Time
	}
	candidates := make([]candidate, 0, len(r.byUser))
	for userID, e := range r.byUser {
		if userID == keepUserID {
			continue
		}
		candidates = append(candidates, candidate{userID, e.sessionID, e.lastAccessed})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccessed.Before(candidates[j].lastAccessed)
	})

	toRemove := len(r.byUser) - r.limit
	if toRemove > len(candidates) {
		toRemove = len(candidates)
	}
	evicted := make([]string, 0, toRemove)
	for _, c := range candidates[:toRemove] {
		evicted = append(evicted, c.sessionID)
		delete(r.byUser, c.userID)
	}
	if len(evicted) > 0 {
		r.logger.Warn().Int("count", len(evicted)).Msg("Session limit reached, oldest sessions evicted")
	}
	return evicted
}

func (r *Registry) notify(sessionIDs []string) {
	if r.onEvict == nil {
		return
	}
	for _, id := range sessionIDs {
		r.onEvict(id)
	}
}
