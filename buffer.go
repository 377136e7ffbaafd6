package smf

import (
	"io"
	"sync"
)

const chunkSize = 64 << 10

var chunkPool = sync.Pool{New: func() interface{} { return &chunk{} }}

// chunk a zeroed block used to fill unwritten payloads.
// Chunks are never written to, so they stay zeroed while pooled.
type chunk [chunkSize]byte

func (c *chunk) Free() { chunkPool.Put(c) }

// writeZeros writes size zero bytes to w at off.
func writeZeros(w io.WriterAt, off, size int64) error {
	c := chunkPool.Get().(*chunk)
	defer c.Free()

	for size > 0 {
		n := int64(chunkSize)
		if size < n {
			n = size
		}
		if _, err := w.WriteAt(c[:n], off); err != nil {
			return err
		}
		off += n
		size -= n
	}
	return nil
}

// writeAtWrapper writes sequentially to an io.WriterAt starting at off.
type writeAtWrapper struct {
	w   io.WriterAt
	off int64
}

func (w *writeAtWrapper) Write(p []byte) (n int, err error) {
	n, err = w.w.WriteAt(p, w.off)
	w.off += int64(n)
	return n, err
}
