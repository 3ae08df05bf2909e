package services

import (
	"time"

	"rentbook/internal/cache"
)

// Sessions hands each login session its own Repository. Idle sessions expire
// after ttl and the least recently used ones are evicted beyond max; an evicted
// session simply reloads from the store on its next request.
type Sessions struct {
	factory func() *Repository
	repos   *cache.LRUCache[*Repository]
}

func NewSessions(factory func() *Repository, max int, ttl time.Duration) *Sessions {
	return &Sessions{
		factory: factory,
		repos:   cache.NewLRUCache[*Repository](max, ttl, cache.WithSlidingExpiry()),
	}
}

// Get returns the session's repository, creating it on first use.
func (s *Sessions) Get(id string) *Repository {
	return s.repos.GetOrAdd(id, s.factory)
}

// Drop forgets the session; used on logout.
func (s *Sessions) Drop(id string) {
	s.repos.Delete(id)
}

func (s *Sessions) Len() int {
	return s.repos.Size()
}

// CleanExpired lets a cache.Manager sweep idle sessions.
func (s *Sessions) CleanExpired() int {
	return s.repos.CleanExpired()
}
