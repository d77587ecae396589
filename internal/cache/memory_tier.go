// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package cache

import (
	"context"
	"sync"
	"time"
)

// memoryEntry is a node of the recency list.
type memoryEntry struct {
	key       string
	value     string
	expiresAt time.Time
	prev      *memoryEntry
	next      *memoryEntry
}

// MemoryTier is an in-process FastTier used when Redis is not configured.
// Entries carry their own TTL and expire lazily on read. At capacity the
// least recently used entry is evicted, after expired entries are swept.
//
// A doubly-linked list with sentinel nodes keeps Get, Set and eviction O(1);
// head.next is the most recently used entry, tail.prev the least.
//
// Thread Safety: Safe for concurrent use.
type MemoryTier struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	maxEntries int
	head       *memoryEntry
	tail       *memoryEntry
	now        func() time.Time
}

// NewMemoryTier creates an in-process fast tier. maxEntries <= 0 means
// unbounded.
func NewMemoryTier(maxEntries int) *MemoryTier {
	m := &MemoryTier{
		entries:    make(map[string]*memoryEntry),
		maxEntries: maxEntries,
		head:       &memoryEntry{},
		tail:       &memoryEntry{},
		now:        time.Now,
	}
	m.head.next = m.tail
	m.tail.prev = m.head
	return m
}

// Get returns the value for key, or ErrFastTierMiss when absent or expired.
func (m *MemoryTier) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[key]
	if !exists {
		return "", ErrFastTierMiss
	}
	if !m.now().Before(entry.expiresAt) {
		m.removeLocked(entry)
		return "", ErrFastTierMiss
	}
	m.moveToFrontLocked(entry)
	return entry.value, nil
}

// Set stores value under key for ttl.
func (m *MemoryTier) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt := m.now().Add(ttl)
	if entry, exists := m.entries[key]; exists {
		entry.value = value
		entry.expiresAt = expiresAt
		m.moveToFrontLocked(entry)
		return nil
	}

	if m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.sweepLocked()
		for len(m.entries) >= m.maxEntries {
			m.removeLocked(m.tail.prev)
		}
	}

	entry := &memoryEntry{key: key, value: value, expiresAt: expiresAt}
	m.addToFrontLocked(entry)
	m.entries[key] = entry
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Cleanup removes expired entries and returns how many were removed.
func (m *MemoryTier) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked()
}

func (m *MemoryTier) sweepLocked() int {
	now := m.now()
	removed := 0
	for _, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			m.removeLocked(entry)
			removed++
		}
	}
	return removed
}

func (m *MemoryTier) addToFrontLocked(entry *memoryEntry) {
	entry.prev = m.head
	entry.next = m.head.next
	m.head.next.prev = entry
	m.head.next = entry
}

func (m *MemoryTier) unlinkLocked(entry *memoryEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (m *MemoryTier) moveToFrontLocked(entry *memoryEntry) {
	m.unlinkLocked(entry)
	m.addToFrontLocked(entry)
}

func (m *MemoryTier) removeLocked(entry *memoryEntry) {
	m.unlinkLocked(entry)
	delete(m.entries, entry.key)
}
