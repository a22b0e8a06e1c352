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

package session

import (
	"sync"

	"github.com/nabbar/cc-executor/process"
)

// Frame is one retained Output Frame, tagged with the stream it came
// from. RecentFrames keeps only the tail of a command's output, bounded
// by byte size rather than frame count, per spec.md §6's
// `recent_frame_bytes` option.
type Frame struct {
	Stream process.Stream
	Bytes  []byte
}

// RecentFrames is a byte-bounded ring of the most recent Output Frames
// for a session's current (or just-finished) command, so the server never
// retains unbounded history - spec.md §5 calls this the session's
// "recent-frame window." protocol appends every forwarded frame to it;
// no JSON-RPC method returns its contents.
type RecentFrames struct {
	mu     sync.Mutex
	cap    int64
	size   int64
	frames []Frame
}

// NewRecentFrames allocates a window capped at capBytes total.
func NewRecentFrames(capBytes int64) *RecentFrames {
	return &RecentFrames{cap: capBytes}
}

// Append adds a frame, evicting the oldest frames until the total size
// is back under cap.
func (r *RecentFrames) Append(f Frame) {
	if r.cap <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames = append(r.frames, f)
	r.size += int64(len(f.Bytes))

	for r.size > r.cap && len(r.frames) > 0 {
		r.size -= int64(len(r.frames[0].Bytes))
		r.frames = r.frames[1:]
	}
}

// Snapshot returns a copy of the frames currently retained.
func (r *RecentFrames) Snapshot() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Reset clears the window, called when a new command begins on the
// session so stale output from a previous command is not retained.
func (r *RecentFrames) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames = nil
	r.size = 0
}
