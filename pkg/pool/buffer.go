// Package pool reuses the buffers pages are rendered into.
package pool

import (
	"bytes"
	"sync"
)

// maxPooled is the largest buffer returned to the pool. A full apply page
// fits well under it.
const maxPooled = 64 << 10

var buffers = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// GetBuffer returns an empty buffer.
func GetBuffer() *bytes.Buffer {
	buf := buffers.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns buf to the pool unless it grew past maxPooled.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooled {
		return
	}
	buffers.Put(buf)
}
