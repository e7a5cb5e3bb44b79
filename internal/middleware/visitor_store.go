package middleware

import (
	"context"
	"sync"
	"time"
)

// Visitor represents a client with its request history
type Visitor struct {
	Requests     []time.Time
	BlockedUntil time.Time
}

// MemoryVisitorStore is a per-process sliding window limiter
type MemoryVisitorStore struct {
	visitors    map[string]*Visitor
	mutex       sync.Mutex
	limit       int
	window      time.Duration
	blockWindow time.Duration
	now         func() time.Time
	done        chan struct{}
	closeOnce   sync.Once
}

// NewMemoryVisitorStore allows limit requests per window and blocks offenders for blockWindow
func NewMemoryVisitorStore(limit int, window, blockWindow time.Duration) *MemoryVisitorStore {
	s := &MemoryVisitorStore{
		visitors:    make(map[string]*Visitor),
		limit:       limit,
		window:      window,
		blockWindow: blockWindow,
		now:         time.Now,
		done:        make(chan struct{}),
	}

	// Start cleanup goroutine to remove old entries
	go s.cleanupOldEntries(time.Hour)

	return s
}

// Allow implements VisitorStore
func (s *MemoryVisitorStore) Allow(_ context.Context, key string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	visitor, exists := s.visitors[key]
	if exists && now.Before(visitor.BlockedUntil) {
		return false, nil
	}

	if !exists {
		visitor = &Visitor{}
		s.visitors[key] = visitor
	}

	// Remove old requests outside the window
	cutoff := now.Add(-s.window)
	kept := visitor.Requests[:0]
	for _, reqTime := range visitor.Requests {
		if reqTime.After(cutoff) {
			kept = append(kept, reqTime)
		}
	}
	visitor.Requests = kept

	if len(visitor.Requests) >= s.limit {
		visitor.BlockedUntil = now.Add(s.blockWindow)
		return false, nil
	}

	visitor.Requests = append(visitor.Requests, now)
	return true, nil
}

// Close stops the cleanup goroutine
func (s *MemoryVisitorStore) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// cleanupOldEntries periodically removes idle visitors to bound memory
func (s *MemoryVisitorStore) cleanupOldEntries(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.prune()
		}
	}
}

func (s *MemoryVisitorStore) prune() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	cutoff := now.Add(-s.window)
	for ip, visitor := range s.visitors {
		active := false
		for _, reqTime := range visitor.Requests {
			if reqTime.After(cutoff) {
				active = true
				break
			}
		}
		if !active && !now.Before(visitor.BlockedUntil) {
			delete(s.visitors, ip)
		}
	}
}
