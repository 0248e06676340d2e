package execute

import (
	"bytes"
	"fmt"
	"io"

	"github.com/p-arndt/werkbank/protocol"
)

// capture drains r into a bounded buffer in fixed-size chunks. On the
// first breach of limit it keeps only the permitted remainder of the
// current chunk, appends a truncation note naming the limit, and stops
// reading; the rest of the stream is abandoned. Read errors are never
// surfaced: whatever was captured so far is returned instead.
func capture(r io.Reader, limit int) string {
	var buf bytes.Buffer
	chunk := make([]byte, protocol.ReadChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if buf.Len()+n > limit {
				buf.Write(chunk[:limit-buf.Len()])
				fmt.Fprintf(&buf, "\n[output truncated at %d bytes]", limit)
				return buf.String()
			}
			buf.Write(chunk[:n])
		}
		if err != nil {
			return buf.String()
		}
	}
}
