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

// Package process implements C4, the Process Supervisor: spawn, stream,
// control, time out, and reap a Child Process, per spec.md §4.4.
package process

import "time"

// State is the Child Process state machine spec.md §4.4 draws.
type State string

const (
	StateStarting    State = "starting"
	StateRunning     State = "running"
	StatePaused      State = "paused"
	StateTerminating State = "terminating"
	StateExited      State = "exited"
)

// Reason is the closed set of termination reasons spec.md §3 names.
type Reason string

const (
	ReasonNormal       Reason = "normal"
	ReasonCancelled    Reason = "cancelled"
	ReasonTimeout      Reason = "timeout"
	ReasonTokenLimit   Reason = "token_limit"
	ReasonInternal     Reason = "internal_error"
	ReasonBackpressure Reason = "backpressure_overflow"
)

// Stream identifies which child pipe an Output Frame came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// OutputFrame is spec.md §3's tagged chunk: produced by C4, consumed by
// C5 and the post-output hooks. Frames are transient; the Supervisor
// stores none, and the bounded recent-frame window is
// session.RecentFrames.
type OutputFrame struct {
	Stream    Stream
	Bytes     []byte
	Truncated bool
}

// Spec is the input to Spawn: the command, any env/timeout overrides, and
// the limits the supervisor enforces while streaming.
type Spec struct {
	CommandID   string
	SessionID   string
	Raw         string // raw command string; mutually exclusive with Executable
	Executable  string // structured form, preferred per spec.md §3
	Args        []string
	Env         map[string]string
	WorkingDir  string
	MaxSeconds  float64
	GracePeriod time.Duration

	MaxLineBytes      int64
	RecentFrameBytes  int64
	StreamChunkBytes  int
	TokenLimitMarker  string
	HeartbeatInterval time.Duration
}

// Snapshot is a point-in-time, race-free copy of a Process's externally
// visible state - PID/PGID, state, exit code, termination reason, byte
// counters - spec.md §3's Child Process fields.
type Snapshot struct {
	PID             int
	PGID            int
	StartedAt       time.Time
	State           State
	ExitCode        *int
	Reason          Reason
	StdoutBytes     int64
	StderrBytes     int64
	DurationSeconds float64
}
