package pool

import (
	"sync"
	"testing"

	"github.com/opd-ai/film24/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hd = Key{Width: 16, Height: 8, Format: media.PixelFormatBGRA32}

func TestPoolBounded(t *testing.T) {
	p, err := New(hd, 2)
	require.NoError(t, err)

	a, err := p.Acquire()
	require.NoError(t, err)
	b, err := p.Acquire()
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 16*8*4, len(a.Pix))

	_, err = p.Acquire()
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, p.Outstanding())

	require.NoError(t, p.Release(a))
	c, err := p.Acquire()
	require.NoError(t, err)
	assert.Same(t, a, c, "released buffer is reused")
	assert.Equal(t, 2, p.Allocated())
}

func TestPoolRejectsForeignBuffer(t *testing.T) {
	p, err := New(hd, 1)
	require.NoError(t, err)
	other, err := media.NewPixelBuffer(16, 8, media.PixelFormatBGRA32)
	require.NoError(t, err)

	assert.ErrorIs(t, p.Release(other), ErrForeignBuffer)
	assert.NoError(t, p.Release(nil))
}

func TestPoolInvalidConfig(t *testing.T) {
	_, err := New(hd, 0)
	assert.Error(t, err)
	_, err = New(Key{Width: 0, Height: 8, Format: media.PixelFormatBGRA32}, 1)
	assert.Error(t, err)
}

func TestPoolClose(t *testing.T) {
	p, err := New(hd, 2)
	require.NoError(t, err)
	buf, err := p.Acquire()
	require.NoError(t, err)

	p.Close()
	_, err = p.Acquire()
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.NoError(t, p.Release(buf), "outstanding buffers can still be released")
	assert.Equal(t, 0, p.Outstanding())
}

func TestPoolConcurrentAcquireRelease(t *testing.T) {
	p, err := New(hd, 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				buf, err := p.Acquire()
				if err != nil {
					continue
				}
				buf.Pix[0] = byte(j)
				_ = p.Release(buf)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, p.Outstanding())
	assert.LessOrEqual(t, p.Allocated(), 4)
}

func TestRegistryKeysPools(t *testing.T) {
	r := NewRegistry(3)
	a, err := r.Get(hd)
	require.NoError(t, err)
	again, err := r.Get(hd)
	require.NoError(t, err)
	assert.Same(t, a, again)

	other, err := r.Get(Key{Width: 8, Height: 8, Format: media.PixelFormatRGBA32})
	require.NoError(t, err)
	assert.NotSame(t, a, other)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 3, other.Capacity())

	r.Close()
	assert.Equal(t, 0, r.Len())
	_, err = a.Acquire()
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func BenchmarkPoolAcquireRelease(b *testing.B) {
	p, err := New(Key{Width: 1920, Height: 1080, Format: media.PixelFormatBGRA32}, 4)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf, err := p.Acquire()
		if err != nil {
			b.Fatal(err)
		}
		_ = p.Release(buf)
	}
}
