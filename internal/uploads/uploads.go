// Package uploads keeps browser uploads as raw bytes under random handles so
// later filter interactions can re-run the pass without re-uploading.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vinodismyname/hidash/config"
	"github.com/vinodismyname/hidash/internal/dataset"
)

// Upload is a stored file paired with metadata for TTL eviction. Data is
// never modified after Put.
type Upload struct {
	ID        string
	Name      string
	Data      []byte
	StoredAt  time.Time
	ExpiresAt time.Time
	mu        sync.RWMutex
}

// Gate coordinates capacity for live uploads (backed by runtime.Controller).
type Gate interface {
	AcquireUpload(ctx context.Context) error
	ReleaseUpload()
}

var (
	// ErrHandleNotFound indicates an unknown or expired handle ID.
	ErrHandleNotFound = errors.New("uploads: handle not found")
	// ErrTooLarge indicates an upload over the configured size.
	ErrTooLarge = errors.New("uploads: file too large")
	// ErrUnsupported indicates an extension no reader exists for.
	ErrUnsupported = errors.New("uploads: unsupported format")
)

// Store is a TTL-bearing cache of uploaded files.
type Store struct {
	mu           sync.RWMutex
	uploads      map[string]*Upload
	ttl          time.Duration
	cleanupEvery time.Duration
	maxBytes     int64
	clock        func() time.Time
	gate         Gate
	stopCh       chan struct{}
	stopOnce     sync.Once
	cleanupWG    sync.WaitGroup
}

// NewStore constructs a store. Pass ttl, cleanupEvery or maxBytes <= 0 to use
// defaults from config. Gate can be nil for tests; clock defaults to time.Now.
func NewStore(ttl, cleanupEvery time.Duration, maxBytes int64, gate Gate, clock func() time.Time) *Store {
	if ttl <= 0 {
		ttl = config.DefaultUploadIdleTTL
	}
	if cleanupEvery <= 0 {
		cleanupEvery = config.DefaultUploadCleanupEvery
	}
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxUploadBytes
	}
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		uploads:      make(map[string]*Upload),
		ttl:          ttl,
		cleanupEvery: cleanupEvery,
		maxBytes:     maxBytes,
		clock:        clock,
		gate:         gate,
		stopCh:       make(chan struct{}),
	}
}

// MaxBytes is the per-file size limit.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Start launches periodic eviction of expired uploads.
func (s *Store) Start() {
	s.cleanupWG.Add(1)
	ticker := time.NewTicker(s.cleanupEvery)
	go func() {
		defer s.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.EvictExpired()
			}
		}
	}()
}

// Close stops background cleanup and drops every upload.
func (s *Store) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	done := make(chan struct{})
	go func() { s.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.uploads {
		delete(s.uploads, id)
		s.release()
	}
	return nil
}

// Put stores data under a new handle. Capacity is enforced via the gate when
// provided. The caller must not modify data afterwards.
func (s *Store) Put(ctx context.Context, name string, data []byte) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if !dataset.IsSupported(name) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), s.maxBytes)
	}
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	now := s.clock()
	u := &Upload{
		ID:        uuid.NewString(),
		Name:      name,
		Data:      data,
		StoredAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.mu.Lock()
	s.uploads[u.ID] = u
	s.mu.Unlock()
	return u.ID, nil
}

// Get returns the upload when present and refreshes its TTL.
func (s *Store) Get(id string) (*Upload, bool) {
	s.mu.RLock()
	u, ok := s.uploads[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	// Refresh TTL on access (idle timeout semantics)
	now := s.clock()
	u.mu.Lock()
	u.ExpiresAt = now.Add(s.ttl)
	u.mu.Unlock()
	return u, true
}

// Remove drops an upload by ID, releasing capacity via the gate.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	_, ok := s.uploads[id]
	if ok {
		delete(s.uploads, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}
	s.release()
	return nil
}

// EvictExpired scans for expired uploads and drops them.
func (s *Store) EvictExpired() int {
	now := s.clock()
	var expired []string

	s.mu.RLock()
	for id, u := range s.uploads {
		if u.Expired(now) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	n := 0
	for _, id := range expired {
		s.mu.Lock()
		u, ok := s.uploads[id]
		// A Get may have refreshed it since the scan.
		if ok && u.Expired(now) {
			delete(s.uploads, id)
			n++
		} else {
			ok = false
		}
		s.mu.Unlock()
		if ok {
			s.release()
		}
	}
	return n
}

// Count returns the current number of stored uploads.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.uploads)
}

func (s *Store) acquire(ctx context.Context) error {
	if s.gate == nil {
		return nil
	}
	return s.gate.AcquireUpload(ctx)
}

func (s *Store) release() {
	if s.gate == nil {
		return
	}
	s.gate.ReleaseUpload()
}

// Expired reports whether the upload has reached its TTL.
func (u *Upload) Expired(now time.Time) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return now.After(u.ExpiresAt)
}
