/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package process

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"

	"github.com/nabbar/cc-executor/logger"
)

const truncationMarker = "...[truncated]"

// lineTracker applies spec.md §4.4's MAX_LINE_BYTES limit to a stream's
// logical lines (delimited by '\n'), independent of the 64 KiB chunk
// boundaries the reader actually produces - a logical line may span many
// chunks, and the limit resets the moment a newline is observed.
type lineTracker struct {
	limit     int64
	sinceNL   int64
	truncated bool // true once the current logical line has already had its marker emitted
}

func (t *lineTracker) apply(chunk []byte) (out []byte, truncatedThisChunk bool) {
	if t.limit <= 0 {
		return chunk, false
	}

	out = make([]byte, 0, len(chunk))

	for _, b := range chunk {
		if b == '\n' {
			t.sinceNL = 0
			t.truncated = false
			out = append(out, b)
			continue
		}

		t.sinceNL++

		if t.sinceNL > t.limit {
			if !t.truncated {
				out = append(out, []byte(truncationMarker)...)
				t.truncated = true
				truncatedThisChunk = true
			}
			continue
		}

		out = append(out, b)
	}

	return out, truncatedThisChunk
}

// isBinaryDense reports whether chunk has a high density of non-textual
// bytes, per spec.md §4.4's binary-detection heuristic.
func isBinaryDense(chunk []byte) bool {
	if len(chunk) == 0 {
		return false
	}

	nonText := 0
	for _, b := range chunk {
		if b == 0 || (b < 9) || (b > 13 && b < 32) {
			nonText++
		}
	}

	return float64(nonText)/float64(len(chunk)) > 0.3
}

// drain reads stream continuously and without suspension from the moment
// the child is alive - the OS pipe buffer is bounded and a full buffer
// deadlocks a child that writes faster than it is read, so this loop
// never blocks on anything but the read itself.
func (p *Process) drain(wg *sync.WaitGroup, r io.ReadCloser, stream Stream, counter *int64) {
	defer wg.Done()
	defer func() { _ = r.Close() }()

	chunkSize := p.spec.StreamChunkBytes
	if chunkSize <= 0 {
		chunkSize = 64 << 10
	}

	tracker := &lineTracker{limit: p.spec.MaxLineBytes}
	buf := make([]byte, chunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			atomic.AddInt64(counter, int64(n))

			if isBinaryDense(chunk) {
				p.log.Debug("binary chunk on "+string(stream), logger.Fields{"bytes": n})
			}

			marked, truncated := tracker.apply(chunk)

			if p.spec.TokenLimitMarker != "" && bytes.Contains(chunk, []byte(p.spec.TokenLimitMarker)) {
				if p.h != nil {
					p.h.OnTokenLimit(p.spec.TokenLimitMarker)
				}
				p.triggerTokenLimit()
			}

			if p.h != nil {
				p.h.OnFrame(OutputFrame{Stream: stream, Bytes: marked, Truncated: truncated})
			}
		}

		if err != nil {
			return
		}
	}
}
