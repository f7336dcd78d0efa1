package api

import (
	"bytes"
	"sync"
)

// bufferPool reuses byte buffers for request bodies. Documents are sent
// base64 encoded, so bodies can be large.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// getBuffer retrieves a buffer from the pool.
// Caller must call putBuffer() when done to return it to the pool.
func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putBuffer returns a buffer to the pool for reuse. Buffers that grew past
// maxBufferSize while carrying a document are left for the GC.
func putBuffer(buf *bytes.Buffer) {
	const maxBufferSize = 1 << 20 // 1MB
	if buf.Cap() <= maxBufferSize {
		bufferPool.Put(buf)
	}
}
