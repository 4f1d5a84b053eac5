package model

import (
	"fmt"
	"sync"
	"time"
)

// Pool holds a fixed set of model handles and leases them out one at a
// time. The count of pooled plus leased handles always equals the pool
// size.
type Pool struct {
	handles chan Model
	size    int

	mu     sync.Mutex
	closed bool
}

// NewPool builds size models from the registry and fills the pool with
// them. All handles are constructed up front so a broken configuration
// fails at pipeline initialization rather than mid-stream.
func NewPool(registry *Registry, modelType, weightsPath string, size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("model: pool size must be positive, got %d", size)
	}

	p := &Pool{
		handles: make(chan Model, size),
		size:    size,
	}
	for i := 0; i < size; i++ {
		m, err := registry.New(modelType, weightsPath)
		if err != nil {
			return nil, fmt.Errorf("building model %d of %d: %w", i+1, size, err)
		}
		p.handles <- m
	}
	return p, nil
}

// Lease takes a handle out of the pool, waiting up to timeout for one
// to become available. The caller keeps the handle until it calls
// Return.
func (p *Pool) Lease(timeout time.Duration) (Model, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	if timeout <= 0 {
		select {
		case m := <-p.handles:
			return m, nil
		default:
			return nil, ErrLeaseTimeout
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m := <-p.handles:
		return m, nil
	case <-timer.C:
		return nil, ErrLeaseTimeout
	}
}

// Return puts a leased handle back. It never blocks: the channel has
// room for every handle the pool ever handed out.
func (p *Pool) Return(m Model) {
	if m == nil {
		return
	}
	select {
	case p.handles <- m:
	default:
		// A handle that was never leased from this pool.
	}
}

// Size returns the total number of handles the pool manages.
func (p *Pool) Size() int {
	return p.size
}

// Available returns the number of handles currently in the pool.
func (p *Pool) Available() int {
	return len(p.handles)
}

// Close stops future leases. Outstanding handles may still be
// returned.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}
