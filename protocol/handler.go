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

package protocol

import (
	"sync/atomic"
	"time"

	"github.com/nabbar/cc-executor/hook"
	"github.com/nabbar/cc-executor/process"
	"github.com/nabbar/cc-executor/session"
)

// cmdHandler implements process.Handler for one execute request. All
// notifications it is responsible for are the asynchronous ones -
// output, heartbeat, token-limit, completion; the synchronous ones
// (started, paused, resumed, cancelled) are sent directly by the
// dispatch methods right after their JSON-RPC response, which is what
// keeps spec.md §4.5's "result precedes any process.* notification"
// guarantee trivially true without extra coordination.
type cmdHandler struct {
	c          *conn
	srv        *Server
	sess       *session.Session
	commandID  string
	executable string
	rawCommand string
	workingDir string
	isClaude   bool

	started atomic.Bool
}

func (h *cmdHandler) OnFrame(f process.OutputFrame) {
	h.sess.Recent().Append(session.Frame{Stream: f.Stream, Bytes: f.Bytes})
	h.c.send(NotifyProcessOutput, processOutputParams{
		Stream:    string(f.Stream),
		Data:      string(f.Bytes),
		Truncated: f.Truncated,
	})
}

func (h *cmdHandler) OnHeartbeat() {
	h.c.send(NotifyHeartbeat, heartbeatParams{Timestamp: nowStamp()})
}

func (h *cmdHandler) OnTokenLimit(marker string) {
	h.c.send(NotifyTokenLimitExceeded, tokenLimitParams{
		Limit:       marker,
		Suggestion:  "reduce prompt size or wait for quota reset",
		Recoverable: true,
	})
}

func (h *cmdHandler) OnStateChange(snap process.Snapshot) {
	if snap.State != process.StateExited {
		return
	}
	if !h.started.Load() {
		// Start() itself failed (e.g. command_not_found); handleExecute
		// clears the command slot with EndCommand on that path, and the
		// admission error already answers the request, so no process.*
		// notification is emitted for it.
		return
	}

	exitCode := 0
	if snap.ExitCode != nil {
		exitCode = *snap.ExitCode
	}

	req := hook.Request{
		CommandID:  h.commandID,
		SessionID:  h.sess.ID,
		Command:    h.rawCommand,
		WorkingDir: h.workingDir,
		IsClaude:   h.isClaude,
		ExitCode:   exitCode,
		Duration:   time.Duration(snap.DurationSeconds * float64(time.Second)),
	}

	for _, w := range h.srv.hooks.RunPost(req) {
		h.c.send(NotifyHookWarning, hookWarningParams{Kind: string(w.Kind), Command: w.Command, Reason: w.Reason})
	}

	h.srv.oracle.Record(h.executable, h.rawCommand, snap.DurationSeconds, string(snap.Reason))
	h.srv.metrics.CommandDuration.Observe(snap.DurationSeconds)
	h.srv.metrics.CommandsFailed.WithLabelValues(string(snap.Reason)).Inc()

	h.c.send(NotifyProcessCompleted, processStateParams{
		PID:      snap.PID,
		PGID:     snap.PGID,
		ExitCode: snap.ExitCode,
		Reason:   string(snap.Reason),
	})

	h.sess.EndCommand(h.commandID)
}
