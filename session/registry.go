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
	"errors"
	"sync/atomic"

	libatm "github.com/nabbar/cc-executor/atomic"
)

// ErrCapacityReached is returned by Registry.Create when max_sessions has
// already been reached, per spec.md §6's `max_sessions` option.
var ErrCapacityReached = errors.New("session: max_sessions reached")

// Registry is the process-wide index of live sessions, keyed by session
// id only - the arena-and-index pattern spec.md §9 mandates to break the
// cyclic session/process-manager references the source entangled. It is
// built directly on the teacher's generic atomic.MapTyped rather than a
// hand-rolled mutex+map, the same primitive errs/pool uses for its
// id-keyed error fan-in.
type Registry struct {
	sessions atomic.Int64
	max      int64
	byID     libatm.MapTyped[string, *Session]
}

// NewRegistry builds an empty Registry capped at max concurrent sessions;
// max <= 0 means unbounded.
func NewRegistry(max int) *Registry {
	return &Registry{
		max:  int64(max),
		byID: libatm.NewMapTyped[string, *Session](),
	}
}

// Create allocates and registers a new Session, enforcing max_sessions.
func (r *Registry) Create(recentFrameBytes int64) (*Session, error) {
	if r.max > 0 && r.sessions.Load() >= r.max {
		return nil, ErrCapacityReached
	}

	s := New(recentFrameBytes)
	r.byID.Store(s.ID, s)
	r.sessions.Add(1)
	return s, nil
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	return r.byID.Load(id)
}

// Remove unregisters a session, e.g. on WebSocket close.
func (r *Registry) Remove(id string) {
	if _, ok := r.byID.LoadAndDelete(id); ok {
		r.sessions.Add(-1)
	}
}

// Count returns the number of currently registered sessions.
func (r *Registry) Count() int {
	return int(r.sessions.Load())
}

// Range visits every registered session; f returning false stops the
// iteration early, mirroring atomic.MapTyped's own Range contract.
func (r *Registry) Range(f func(id string, s *Session) bool) {
	r.byID.Range(f)
}
