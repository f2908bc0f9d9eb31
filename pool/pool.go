// Package pool provides named pools of reusable render instances with
// bounded growth and periodic adaptive shrinking.
//
// Pools are driven by the cooperative frame tick and are not safe for
// concurrent use. Exhaustion is an explicit, recoverable condition: the
// caller skips or defers the object for the frame instead of blocking.
package pool

import (
	"errors"
	"fmt"

	"github.com/matchgrid/matchgrid"
)

// Default pool configuration constants.
const (
	// DefaultInitial is the default warm free-list size.
	DefaultInitial = 8

	// DefaultMax is the default in-use ceiling.
	DefaultMax = 256

	// ShrinkThreshold is the in-use/total utilization below which a
	// periodic resize shrinks the free list.
	ShrinkThreshold = 0.25
)

// ErrExhausted is returned by Acquire when the in-use count has reached
// the pool maximum. The caller should skip or defer the object.
var ErrExhausted = errors.New("pool: exhausted")

// Config configures a typed pool.
type Config[T any] struct {
	// Name identifies the pool in logs and stats.
	Name string

	// Initial is the warm free-list size; Resize never shrinks the
	// pool's total below it.
	Initial int

	// Max bounds the number of instances in use at once.
	Max int

	// New constructs a fresh instance. Required.
	New func() T

	// Reset prepares a released instance for reuse. Optional.
	Reset func(T)
}

// Pool is a typed free-list pool with an in-use ceiling.
type Pool[T any] struct {
	cfg  Config[T]
	free []T

	inUse       int
	acquires    uint64
	exhaustions uint64
}

// New creates a pool and pre-allocates Initial instances.
func New[T any](cfg Config[T]) (*Pool[T], error) {
	if cfg.New == nil {
		return nil, fmt.Errorf("pool %q: New constructor is required", cfg.Name)
	}
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultInitial
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}
	if cfg.Initial > cfg.Max {
		cfg.Initial = cfg.Max
	}
	p := &Pool[T]{cfg: cfg, free: make([]T, 0, cfg.Initial)}
	for i := 0; i < cfg.Initial; i++ {
		p.free = append(p.free, cfg.New())
	}
	return p, nil
}

// Name returns the pool name.
func (p *Pool[T]) Name() string { return p.cfg.Name }

// Acquire returns an instance from the free list, constructing a new one
// only while the in-use count is below the maximum. When the pool is
// exhausted it returns the zero value and ErrExhausted.
func (p *Pool[T]) Acquire() (T, error) {
	if p.inUse >= p.cfg.Max {
		p.exhaustions++
		var zero T
		return zero, ErrExhausted
	}
	p.inUse++
	p.acquires++
	if n := len(p.free); n > 0 {
		v := p.free[n-1]
		var zero T
		p.free[n-1] = zero
		p.free = p.free[:n-1]
		return v, nil
	}
	return p.cfg.New(), nil
}

// Release resets an instance and returns it to the free list.
// Releases beyond the acquired count are ignored.
func (p *Pool[T]) Release(v T) {
	if p.inUse == 0 {
		return
	}
	p.inUse--
	if p.cfg.Reset != nil {
		p.cfg.Reset(v)
	}
	p.free = append(p.free, v)
}

// Resize shrinks the free list when utilization is low, down toward (but
// never below) the configured initial size. Returns the number of
// instances dropped.
func (p *Pool[T]) Resize() int {
	total := p.inUse + len(p.free)
	if total <= p.cfg.Initial {
		return 0
	}
	if float64(p.inUse)/float64(total) >= ShrinkThreshold {
		return 0
	}

	target := p.inUse + len(p.free)/2
	if target < p.cfg.Initial {
		target = p.cfg.Initial
	}
	dropped := 0
	for p.inUse+len(p.free) > target && len(p.free) > 0 {
		n := len(p.free) - 1
		var zero T
		p.free[n] = zero
		p.free = p.free[:n]
		dropped++
	}
	if dropped > 0 {
		matchgrid.Logger().Debug("pool: shrunk",
			"pool", p.cfg.Name, "dropped", dropped, "total", p.inUse+len(p.free))
	}
	return dropped
}

// Stats contains pool statistics.
type Stats struct {
	// Name identifies the pool.
	Name string
	// Free is the current free-list length.
	Free int
	// InUse is the number of acquired instances.
	InUse int
	// Max is the in-use ceiling.
	Max int
	// Acquires is the total number of successful acquires.
	Acquires uint64
	// Exhaustions is the number of acquires rejected at the ceiling.
	Exhaustions uint64
}

// Stats returns a snapshot of pool statistics.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Name:        p.cfg.Name,
		Free:        len(p.free),
		InUse:       p.inUse,
		Max:         p.cfg.Max,
		Acquires:    p.acquires,
		Exhaustions: p.exhaustions,
	}
}

// Resizer is the untyped view of a pool used by the Manager.
type Resizer interface {
	Name() string
	Resize() int
}

// Manager coordinates periodic resizing across named pools of different
// instance types.
type Manager struct {
	pools []Resizer
	names map[string]struct{}
}

// NewManager creates an empty pool manager.
func NewManager() *Manager {
	return &Manager{names: make(map[string]struct{})}
}

// Register adds a pool to the manager. Duplicate names are rejected.
func (m *Manager) Register(p Resizer) error {
	if _, dup := m.names[p.Name()]; dup {
		return fmt.Errorf("pool: duplicate pool name %q", p.Name())
	}
	m.names[p.Name()] = struct{}{}
	m.pools = append(m.pools, p)
	return nil
}

// ResizeAll runs the adaptive resize on every registered pool and
// returns the total number of dropped instances. The performance monitor
// invokes this on its periodic sweep.
func (m *Manager) ResizeAll() int {
	dropped := 0
	for _, p := range m.pools {
		dropped += p.Resize()
	}
	return dropped
}
