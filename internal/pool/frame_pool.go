package pool

import "sync"

const (
	frameCap    = 4096
	maxFrameCap = 16384
)

// FramePool recycles the buffers used to assemble outbound packet frames.
type FramePool struct {
	pool sync.Pool
}

// NewFramePool creates a frame buffer pool.
func NewFramePool() *FramePool {
	return &FramePool{
		pool: sync.Pool{
			New: func() any {
				return make([]byte, 0, frameCap)
			},
		},
	}
}

// Get returns an empty buffer with preallocated capacity.
func (p *FramePool) Get() []byte {
	buf := p.pool.Get().([]byte)
	return buf[:0]
}

// Put returns a buffer to the pool. Buffers grown past maxFrameCap (favicon
// sized status frames) are dropped instead of retained.
func (p *FramePool) Put(buf []byte) {
	if cap(buf) <= maxFrameCap {
		p.pool.Put(buf)
	}
}
