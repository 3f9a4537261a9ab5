package frames

import (
	"sync"
	"time"
)

// DefaultMaxAge is the freshness bound for cached frames. A camera that has
// not uploaded within this window is treated as if it sent nothing.
const DefaultMaxAge = 10 * time.Second

// Frame holds the most recent image observed for one camera.
type Frame struct {
	CameraID    string
	Payload     []byte
	ContentType string
	CapturedAt  time.Time
	Size        int
}

// Stats summarises the store contents for health reporting.
type Stats struct {
	TotalFrames int      `json:"total_frames"`
	TotalBytes  int      `json:"total_bytes"`
	Cameras     []string `json:"cameras"`
}

// Config tunes a Store.
type Config struct {
	// MaxAge is the freshness bound; zero selects DefaultMaxAge.
	MaxAge time.Duration
	// MaxKeys caps the number of tracked cameras; zero means unbounded.
	// When the cap is reached, a write for a new camera evicts the
	// oldest entry.
	MaxKeys int
	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Store keeps the single most recent frame per camera with a fixed TTL.
// Reads never return stale frames; stale entries are swept on every write
// and dropped lazily on read. The store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	frames  map[string]*Frame
	maxAge  time.Duration
	maxKeys int
	now     func() time.Time
}

// NewStore constructs an empty frame store.
func NewStore(cfg Config) *Store {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Store{
		frames:  make(map[string]*Frame),
		maxAge:  maxAge,
		maxKeys: cfg.MaxKeys,
		now:     now,
	}
}

// MaxAge returns the configured freshness bound.
func (s *Store) MaxAge() time.Duration {
	return s.maxAge
}

// Store replaces the frame for cameraID with the supplied payload,
// timestamped now. Previous content for the same camera is discarded
// (last write wins). Every write sweeps expired entries across all keys.
func (s *Store) Store(cameraID string, payload []byte, contentType string) {
	if contentType == "" {
		contentType = "image/jpeg"
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)

	if _, exists := s.frames[cameraID]; !exists && s.maxKeys > 0 && len(s.frames) >= s.maxKeys {
		s.evictOldestLocked()
	}

	s.frames[cameraID] = &Frame{
		CameraID:    cameraID,
		Payload:     payload,
		ContentType: contentType,
		CapturedAt:  now,
		Size:        len(payload),
	}
}

// Fetch returns the frame for cameraID if one exists and is fresh.
// A miss is a normal outcome, not an error: the second return value is
// false both when no frame was ever stored and when the stored frame
// has aged past the bound (in which case it is removed).
func (s *Store) Fetch(cameraID string) (*Frame, bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	frame, ok := s.frames[cameraID]
	if !ok {
		return nil, false
	}

	if now.Sub(frame.CapturedAt) > s.maxAge {
		delete(s.frames, cameraID)
		return nil, false
	}

	return frame, true
}

// AgeOf returns the elapsed time since the camera's frame was stored.
// The second return value is false when no fresh frame exists.
func (s *Store) AgeOf(cameraID string) (time.Duration, bool) {
	frame, ok := s.Fetch(cameraID)
	if !ok {
		return 0, false
	}
	return s.now().Sub(frame.CapturedAt), true
}

// HasFresh reports whether a fresh frame exists for the camera.
func (s *Store) HasFresh(cameraID string) bool {
	_, ok := s.Fetch(cameraID)
	return ok
}

// Stats reports the current store contents. Expired entries are swept first.
func (s *Store) Stats() Stats {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)

	stats := Stats{Cameras: make([]string, 0, len(s.frames))}
	for id, frame := range s.frames {
		stats.TotalFrames++
		stats.TotalBytes += frame.Size
		stats.Cameras = append(stats.Cameras, id)
	}
	return stats
}

// Clear removes all frames.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = make(map[string]*Frame)
}

func (s *Store) sweepLocked(now time.Time) {
	for id, frame := range s.frames {
		if now.Sub(frame.CapturedAt) > s.maxAge {
			delete(s.frames, id)
		}
	}
}

func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, frame := range s.frames {
		if oldestID == "" || frame.CapturedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = frame.CapturedAt
		}
	}
	if oldestID != "" {
		delete(s.frames, oldestID)
	}
}
