//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync"
)

// Memory management errors.
var (
	// ErrMemoryBudgetExceeded is returned when an allocation would exceed the budget.
	ErrMemoryBudgetExceeded = errors.New("gpu: memory budget exceeded")

	// ErrMemoryManagerClosed is returned when operating on a closed manager.
	ErrMemoryManagerClosed = errors.New("gpu: memory manager closed")
)

// Default memory limits.
const (
	// DefaultMaxMemoryMB is the default field memory budget (256 MB).
	DefaultMaxMemoryMB = 256

	// MinMemoryMB is the minimum allowed budget (16 MB).
	MinMemoryMB = 16
)

// MemoryStats contains field buffer usage statistics.
type MemoryStats struct {
	// TotalBytes is the budget in bytes.
	TotalBytes uint64

	// UsedBytes is the currently allocated storage in bytes.
	UsedBytes uint64

	// PeakBytes is the highest UsedBytes seen.
	PeakBytes uint64

	// BufferCount is the number of live field buffers.
	BufferCount int

	// Utilization is the fraction of the budget in use (0.0 to 1.0).
	Utilization float64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d KB, peak %d KB, %d buffers]",
		s.Utilization*100,
		s.UsedBytes/1024,
		s.TotalBytes/1024,
		s.PeakBytes/1024,
		s.BufferCount)
}

// MemoryManager accounts the storage buffers backing fields and enforces a
// budget. Fields are never evicted: the solver owns every live field, so an
// allocation over budget fails instead.
//
// MemoryManager is safe for concurrent use.
type MemoryManager struct {
	mu sync.Mutex

	budgetBytes uint64
	usedBytes   uint64
	peakBytes   uint64
	buffers     map[*buffer]uint64
	closed      bool
}

// NewMemoryManager creates a manager with a budget in megabytes.
// Values below MinMemoryMB select DefaultMaxMemoryMB.
func NewMemoryManager(maxMemoryMB int) *MemoryManager {
	if maxMemoryMB < MinMemoryMB {
		maxMemoryMB = DefaultMaxMemoryMB
	}
	//nolint:gosec // G115: bounded below by MinMemoryMB
	return &MemoryManager{
		budgetBytes: uint64(maxMemoryMB) * 1024 * 1024,
		buffers:     make(map[*buffer]uint64),
	}
}

// reserve checks that size more bytes fit in the budget.
func (m *MemoryManager) reserve(size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMemoryManagerClosed
	}
	if m.usedBytes+size > m.budgetBytes {
		return fmt.Errorf("%w: need %d bytes, %d of %d in use",
			ErrMemoryBudgetExceeded, size, m.usedBytes, m.budgetBytes)
	}
	return nil
}

func (m *MemoryManager) track(b *buffer, size uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers[b] = size
	m.usedBytes += size
	m.peakBytes = max(m.peakBytes, m.usedBytes)
}

func (m *MemoryManager) untrack(b *buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	size, ok := m.buffers[b]
	if !ok {
		return
	}
	delete(m.buffers, b)
	m.usedBytes -= size
}

// Stats returns current usage.
func (m *MemoryManager) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := MemoryStats{
		TotalBytes:  m.budgetBytes,
		UsedBytes:   m.usedBytes,
		PeakBytes:   m.peakBytes,
		BufferCount: len(m.buffers),
	}
	if m.budgetBytes > 0 {
		s.Utilization = float64(m.usedBytes) / float64(m.budgetBytes)
	}
	return s
}

// Close stops accepting reservations and returns the buffers still tracked.
func (m *MemoryManager) Close() []*buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	live := make([]*buffer, 0, len(m.buffers))
	for b := range m.buffers {
		live = append(live, b)
	}
	return live
}
