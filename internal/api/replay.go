package api

import "sync"

// replayEntry is one broadcast alert envelope retained for replay.
type replayEntry struct {
	userID int64
	data   []byte
}

// ReplayBuffer is a fixed-size circular buffer of recent alert
// envelopes. New WebSocket clients get their user's buffered alerts
// replayed on connect, so a reconnect does not lose alerts fired while
// the client was away.
//
// Thread-safe for concurrent writes and reads.
type ReplayBuffer struct {
	mu   sync.RWMutex
	buf  []replayEntry
	cap  int
	pos  int // next write position
	full bool
}

// NewReplayBuffer creates a replay buffer with the given capacity.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 200
	}
	return &ReplayBuffer{
		buf: make([]replayEntry, capacity),
		cap: capacity,
	}
}

// Push retains an alert envelope, evicting the oldest entry when full.
func (rb *ReplayBuffer) Push(userID int64, data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	// Copy so the buffer never aliases the caller's slice.
	cp := make([]byte, len(data))
	copy(cp, data)

	rb.buf[rb.pos] = replayEntry{userID: userID, data: cp}
	rb.pos = (rb.pos + 1) % rb.cap
	if rb.pos == 0 && !rb.full {
		rb.full = true
	}
}

// ForUser returns the buffered envelopes for one user, oldest first.
func (rb *ReplayBuffer) ForUser(userID int64) [][]byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var result [][]byte
	count := rb.len()
	for i := 0; i < count; i++ {
		e := rb.buf[rb.index(i)]
		if e.userID == userID {
			result = append(result, e.data)
		}
	}
	return result
}

// Len returns the number of entries currently buffered.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.len()
}

func (rb *ReplayBuffer) len() int {
	if rb.full {
		return rb.cap
	}
	return rb.pos
}

// index converts a logical index (0 = oldest) to a buffer index.
func (rb *ReplayBuffer) index(logical int) int {
	if rb.full {
		return (rb.pos + logical) % rb.cap
	}
	return logical
}
