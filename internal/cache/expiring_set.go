// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package cache

import (
	"sync"
	"time"
)

type entry struct {
	key       string
	expiresAt time.Time
	prev      *entry
	next      *entry
}

// ExpiringSet is a thread-safe set of keys that each expire at their own
// deadline. When full, the least recently added or touched key is evicted.
//
// It is a doubly-linked list plus a map, so Add, Contains and eviction
// are O(1).
type ExpiringSet struct {
	mu sync.Mutex

	capacity   int
	defaultTTL time.Duration
	now        func() time.Time

	items map[string]*entry

	// head.next is the most recent entry, tail.prev the oldest.
	head *entry
	tail *entry

	evictions int64
}

// NewExpiringSet creates a set of at most capacity keys. Keys added with a
// zero TTL live for defaultTTL.
func NewExpiringSet(capacity int, defaultTTL time.Duration) *ExpiringSet {
	if capacity <= 0 {
		capacity = 10000
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	s := &ExpiringSet{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		now:        time.Now,
		items:      make(map[string]*entry),
		head:       &entry{},
		tail:       &entry{},
	}
	s.head.next = s.tail
	s.tail.prev = s.head
	return s
}

// Add inserts key, or refreshes its deadline if present.
func (s *ExpiringSet) Add(key string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := s.now().Add(ttl)
	if e, ok := s.items[key]; ok {
		e.expiresAt = expiresAt
		s.unlink(e)
		s.pushFront(e)
		return
	}

	e := &entry{key: key, expiresAt: expiresAt}
	s.pushFront(e)
	s.items[key] = e

	for len(s.items) > s.capacity {
		s.remove(s.tail.prev)
		s.evictions++
	}
}

// Contains reports whether key is present and unexpired. Expired keys are
// dropped lazily here.
func (s *ExpiringSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return false
	}
	if s.now().After(e.expiresAt) {
		s.remove(e)
		return false
	}
	return true
}

// Remove deletes key and reports whether it was present.
func (s *ExpiringSet) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if ok {
		s.remove(e)
	}
	return ok
}

// Len counts entries, including expired ones not yet dropped.
func (s *ExpiringSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Evictions is the number of keys dropped for capacity.
func (s *ExpiringSet) Evictions() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictions
}

// CleanupExpired drops every expired key and returns how many it removed.
func (s *ExpiringSet) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for e := s.tail.prev; e != s.head; {
		prev := e.prev
		if now.After(e.expiresAt) {
			s.remove(e)
			removed++
		}
		e = prev
	}
	return removed
}

// Must be called with mu held.

func (s *ExpiringSet) pushFront(e *entry) {
	e.prev = s.head
	e.next = s.head.next
	s.head.next.prev = e
	s.head.next = e
}

func (s *ExpiringSet) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (s *ExpiringSet) remove(e *entry) {
	if e == s.head {
		return
	}
	s.unlink(e)
	delete(s.items, e.key)
}
