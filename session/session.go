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

// Package session implements the data-model half of C5: a Session owns
// exactly one WebSocket peer, at most one non-terminal command, and a
// bounded recent-frame window, per spec.md §4.5 and §9's arena-and-index
// guidance ("each session owns its child slot, and cross-references are
// by session id and command id only"). The wire protocol itself lives in
// package protocol; this package has no knowledge of JSON-RPC or
// gorilla/websocket.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nabbar/cc-executor/process"
)

// Command is the live, per-session command slot. A Session holds at most
// one of these in a non-terminal state, enforcing spec.md §4.5's
// single-command invariant.
type Command struct {
	ID        string
	Proc      *process.Process
	StartedAt time.Time
}

// Session is one WebSocket connection's server-side state: its identity,
// its current command slot (if any), and its rolling recent-frame
// window. Cross-session isolation is total - a Session never reaches
// into another Session's fields (spec.md §5).
type Session struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	command *Command
	recent  *RecentFrames
}

// New allocates a Session with a fresh id and an empty recent-frame
// window sized to recentFrameBytes.
func New(recentFrameBytes int64) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		recent:    NewRecentFrames(recentFrameBytes),
	}
}

// TryBeginCommand installs cmd as the active command if and only if no
// command is currently active, returning false on violation of the
// single-command invariant (spec.md §4.5, §8).
func (s *Session) TryBeginCommand(cmd *Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.command != nil {
		return false
	}
	s.command = cmd
	return true
}

// EndCommand clears the active command slot if it matches id. A mismatch
// means a newer command already replaced it and is a no-op - it is not
// an error, since completion notifications for a superseded command can
// race with CANCEL handling.
func (s *Session) EndCommand(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.command != nil && s.command.ID == id {
		s.command = nil
	}
}

// ActiveCommand returns the session's current command slot, or nil.
func (s *Session) ActiveCommand() *Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.command
}

// Recent returns the session's rolling recent-frame window.
func (s *Session) Recent() *RecentFrames {
	return s.recent
}
