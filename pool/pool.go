package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/film24/media"
	"github.com/sirupsen/logrus"
)

var (
	// ErrExhausted indicates every buffer in the pool is in use.
	ErrExhausted = errors.New("pixel buffer pool exhausted")
	// ErrForeignBuffer indicates a buffer released to a pool it did not come from.
	ErrForeignBuffer = errors.New("buffer does not belong to this pool")
	// ErrPoolClosed indicates the pool was closed.
	ErrPoolClosed = errors.New("pixel buffer pool closed")
)

// Key identifies a buffer geometry.
type Key struct {
	Width  int
	Height int
	Format media.PixelFormat
}

// String renders the key as WxH/format.
func (k Key) String() string {
	return fmt.Sprintf("%dx%d/%s", k.Width, k.Height, k.Format)
}

// Pool is a bounded free list of equally sized pixel buffers. Buffers are
// allocated lazily up to the capacity.
type Pool struct {
	key      Key
	capacity int

	mu          sync.Mutex
	free        []*media.PixelBuffer
	owned       map[*media.PixelBuffer]bool
	allocated   int
	outstanding int
	closed      bool
}

// New creates a pool for key holding at most capacity buffers.
func New(key Key, capacity int) (*Pool, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("pool capacity must be positive, got %d", capacity)
	}
	if key.Width <= 0 || key.Height <= 0 || key.Format.BytesPerPixel() == 0 {
		return nil, fmt.Errorf("invalid pool key %s", key)
	}
	return &Pool{
		key:      key,
		capacity: capacity,
		owned:    make(map[*media.PixelBuffer]bool, capacity),
	}, nil
}

// Key returns the geometry served by the pool.
func (p *Pool) Key() Key {
	return p.key
}

// Capacity returns the maximum number of buffers.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Acquire returns a free buffer. The contents of a reused buffer are
// whatever the previous owner left there.
func (p *Pool) Acquire() (*media.PixelBuffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if n := len(p.free); n > 0 {
		buf := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.outstanding++
		return buf, nil
	}
	if p.allocated >= p.capacity {
		logrus.WithFields(logrus.Fields{
			"function":    "Pool.Acquire",
			"key":         p.key.String(),
			"capacity":    p.capacity,
			"outstanding": p.outstanding,
		}).Warn("Pixel buffer pool exhausted")
		return nil, ErrExhausted
	}

	buf, err := media.NewPixelBuffer(p.key.Width, p.key.Height, p.key.Format)
	if err != nil {
		return nil, err
	}
	p.owned[buf] = true
	p.allocated++
	p.outstanding++
	return buf, nil
}

// Release returns buf to the pool.
func (p *Pool) Release(buf *media.PixelBuffer) error {
	if buf == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.owned[buf] {
		return ErrForeignBuffer
	}
	p.outstanding--
	if p.closed {
		delete(p.owned, buf)
		return nil
	}
	p.free = append(p.free, buf)
	return nil
}

// Outstanding returns the number of buffers currently acquired.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding
}

// Allocated returns the number of buffers created so far.
func (p *Pool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// Close drops the free list. Later Acquire calls fail; outstanding buffers
// may still be released.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, buf := range p.free {
		delete(p.owned, buf)
	}
	p.free = nil
}

// Registry lazily creates one Pool per Key.
type Registry struct {
	capacity int

	mu    sync.Mutex
	pools map[Key]*Pool
}

// NewRegistry creates a registry whose pools hold capacity buffers each.
func NewRegistry(capacity int) *Registry {
	return &Registry{capacity: capacity, pools: make(map[Key]*Pool)}
}

// Get returns the pool for key, creating it on first use.
func (r *Registry) Get(key Key) (*Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pools[key]; ok {
		return p, nil
	}
	p, err := New(key, r.capacity)
	if err != nil {
		return nil, err
	}
	r.pools[key] = p

	logrus.WithFields(logrus.Fields{
		"function": "Registry.Get",
		"key":      key.String(),
		"capacity": r.capacity,
	}).Debug("Created pixel buffer pool")

	return p, nil
}

// Len returns the number of pools.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pools)
}

// Close closes every pool.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, p := range r.pools {
		p.Close()
		delete(r.pools, k)
	}
}
