// Package session keeps the in-memory conversation state of every user.
//
// Sessions live only in process memory. The store hands out copies, so a
// caller must hold the user's key in a Locker for the whole
// read-modify-write cycle.
package session

import (
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/paulosouza-ec/Avotech/internal/models"
)

// DefaultShardCount is the number of independently locked map shards.
const DefaultShardCount = 16

// Store is the capability interface for session persistence.
type Store interface {
	// Get returns a copy of the user's session, or false if none exists.
	Get(userID string) (*models.Session, bool)
	// Put stores a copy of the session under its UserID.
	Put(s *models.Session)
	// Delete removes the user's session.
	Delete(userID string)
	// Range calls fn with a copy of every session until fn returns false.
	Range(fn func(s *models.Session) bool)
	// Len returns the number of sessions.
	Len() int
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// MemoryStore is a sharded, concurrency-safe Store.
type MemoryStore struct {
	shards []*shard
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{shards: make([]*shard, DefaultShardCount)}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*models.Session)}
	}
	return s
}

func (s *MemoryStore) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Get returns a copy of the session for userID.
func (s *MemoryStore) Get(userID string) (*models.Session, bool) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sess, ok := sh.sessions[userID]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// Put stores a copy of the session.
func (s *MemoryStore) Put(sess *models.Session) {
	if sess == nil || sess.UserID == "" {
		slog.Warn("SessionStore Put ignored session without user id")
		return
	}
	c := sess.Clone()
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	sh := s.shardFor(sess.UserID)
	sh.mu.Lock()
	sh.sessions[sess.UserID] = c
	sh.mu.Unlock()
}

// Delete removes the session for userID.
func (s *MemoryStore) Delete(userID string) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	delete(sh.sessions, userID)
	sh.mu.Unlock()
}

// Range iterates over copies of all sessions. The iteration order is unspecified.
func (s *MemoryStore) Range(fn func(sess *models.Session) bool) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		snapshot := make([]*models.Session, 0, len(sh.sessions))
		for _, sess := range sh.sessions {
			snapshot = append(snapshot, sess.Clone())
		}
		sh.mu.RUnlock()

		for _, sess := range snapshot {
			if !fn(sess) {
				return
			}
		}
	}
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// LoadOrNew returns the stored session for userID or a fresh idle one.
func LoadOrNew(st Store, userID string) *models.Session {
	if sess, ok := st.Get(userID); ok {
		return sess
	}
	return models.NewSession(userID)
}
