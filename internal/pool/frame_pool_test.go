package pool

import "testing"

func TestFramePoolGet(t *testing.T) {
	p := NewFramePool()

	buf := p.Get()
	if len(buf) != 0 {
		t.Errorf("buffer length = %d, want 0", len(buf))
	}
	if cap(buf) != frameCap {
		t.Errorf("buffer capacity = %d, want %d", cap(buf), frameCap)
	}
}

func TestFramePoolReuse(t *testing.T) {
	p := NewFramePool()

	buf := p.Get()
	buf = append(buf, 1, 2, 3)
	p.Put(buf)

	// A recycled buffer comes back empty.
	again := p.Get()
	if len(again) != 0 {
		t.Errorf("recycled buffer length = %d, want 0", len(again))
	}
}

func TestFramePoolDropsOversized(t *testing.T) {
	p := NewFramePool()

	big := make([]byte, 0, maxFrameCap+1)
	p.Put(big)

	buf := p.Get()
	if cap(buf) > maxFrameCap {
		t.Errorf("oversized buffer was retained, capacity %d", cap(buf))
	}
}
