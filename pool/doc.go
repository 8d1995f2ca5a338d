// Package pool provides bounded pixel-buffer pools for the zero-copy render
// path.
//
// A Pool hands out buffers of one geometry, identified by a Key of width,
// height and pixel format. A buffer is owned by whoever acquired it until it
// is released; the recording writer releases each buffer once the frame has
// been encoded. When every buffer is out, Acquire fails with ErrExhausted
// instead of allocating, which the recorder treats as a writer-level failure.
//
//	reg := pool.NewRegistry(8)
//	p, _ := reg.Get(pool.Key{Width: 1920, Height: 1080, Format: media.PixelFormatBGRA32})
//	buf, err := p.Acquire()
//	if err != nil { ... }
//	defer p.Release(buf)
package pool
