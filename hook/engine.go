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

package hook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nabbar/cc-executor/logger"
)

// wrappedCommandFile is the one canonical well-known temp file a
// pre-execute hook may write to augment the command, resolving spec.md
// §9's "slightly different well-known-file names" Open Question.
func wrappedCommandFile(commandID string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("cc-executor-hook-%s.json", commandID))
}

// wrappedCommandDoc is the structured-data contract a hook writes to
// wrappedCommandFile: the canonical key is "wrapped_command".
type wrappedCommandDoc struct {
	WrappedCommand string `json:"wrapped_command"`
}

// Request carries the context a hook program needs, projected onto its
// environment, per spec.md §4.3.
type Request struct {
	CommandID  string
	SessionID  string
	Command    string
	WorkingDir string
	IsClaude   bool // the command targets the conversational LLM CLI; gates pre-claude/post-claude
	ExitCode   int
	Duration   time.Duration
}

// Warning is one non-fatal hook failure surfaced to the client as
// `hook.warning`.
type Warning struct {
	Kind    Kind
	Command string
	Reason  string
}

// PreResult is the outcome of running the pre-hook sequence.
type PreResult struct {
	WrappedCommand string // replacement command string, or "" if unchanged
	Warnings       []Warning
	Blocked        bool
	BlockedBy      string
}

// Engine is C3. Hook configuration is loaded once at start and treated as
// immutable; the only runtime state it touches is the recent-executions
// bookkeeping in the shared timing store.
type Engine struct {
	log      logger.Logger
	manifest *Manifest
	recent   *RecentStore
	timeout  time.Duration
}

func New(log logger.Logger, manifest *Manifest, recent *RecentStore, globalTimeout time.Duration) *Engine {
	return &Engine{log: log.WithField("component", "hook.engine"), manifest: manifest, recent: recent, timeout: globalTimeout}
}

// RunPre runs pre-execute, pre-tool, and (if req.IsClaude) pre-claude in
// that strict order. A failing non-blocking hook becomes a Warning; a
// hook that writes the blocking sentinel aborts the sequence immediately
// with Blocked=true, per spec.md §4.3's Failure semantics.
func (e *Engine) RunPre(req Request) PreResult {
	var res PreResult

	for _, k := range preOrder {
		if k == KindPreClaude && !req.IsClaude {
			continue
		}

		for _, h := range e.manifest.Hooks[k] {
			out := e.run(k, h, req)

			if out.Blocking {
				res.Blocked = true
				res.BlockedBy = h.Command
				return res
			}

			if out.Err != nil || out.ExitCode != 0 || out.TimedOut {
				res.Warnings = append(res.Warnings, Warning{Kind: k, Command: h.Command, Reason: reasonFor(out)})
			}
		}
	}

	if wc, ok := e.readWrappedCommand(req.CommandID); ok {
		res.WrappedCommand = wc
	}

	return res
}

// RunPost runs post-claude (conditional), post-tool, and post-output in
// that strict order. Post-hook failures are recorded and ignored - they
// never block or alter the already-completed command.
func (e *Engine) RunPost(req Request) []Warning {
	var warnings []Warning

	for _, k := range postOrder {
		if k == KindPostClaude && !req.IsClaude {
			continue
		}

		for _, h := range e.manifest.Hooks[k] {
			out := e.run(k, h, req)
			if out.Err != nil || out.ExitCode != 0 || out.TimedOut {
				warnings = append(warnings, Warning{Kind: k, Command: h.Command, Reason: reasonFor(out)})
			}
		}
	}

	return warnings
}

func (e *Engine) run(k Kind, h Hook, req Request) Outcome {
	timeout := e.timeout
	if h.Timeout != nil {
		timeout = *h.Timeout
	}

	env := hookEnv(req)
	out := runOne(h, env, timeout)

	if e.recent != nil {
		e.recent.Append(Execution{
			Kind:      k,
			Command:   h.Command,
			CommandID: req.CommandID,
			ExitCode:  out.ExitCode,
			TimedOut:  out.TimedOut,
			At:        time.Now().UTC(),
		})
	}

	if out.Err != nil {
		e.log.Debug("hook failed", logger.Fields{"kind": k, "command": h.Command, "error": out.Err})
	}

	return out
}

func reasonFor(out Outcome) string {
	switch {
	case out.TimedOut:
		return "timeout"
	case out.Err != nil:
		return out.Err.Error()
	default:
		return fmt.Sprintf("exit code %d", out.ExitCode)
	}
}

func hookEnv(req Request) []string {
	env := os.Environ()
	env = append(env,
		"CC_EXECUTOR_SESSION_ID="+req.SessionID,
		"CC_EXECUTOR_COMMAND_ID="+req.CommandID,
		"CC_EXECUTOR_COMMAND="+req.Command,
		"CC_EXECUTOR_WORKING_DIR="+req.WorkingDir,
		"CC_EXECUTOR_EXIT_CODE="+strconv.Itoa(req.ExitCode),
		"CC_EXECUTOR_DURATION_SECONDS="+strconv.FormatFloat(req.Duration.Seconds(), 'f', -1, 64),
		"CC_EXECUTOR_WRAPPED_COMMAND_FILE="+wrappedCommandFile(req.CommandID),
	)
	return env
}

// Enabled reports whether any hook is configured for any kind, for the
// `hook_status` request's `enabled` field.
func (e *Engine) Enabled() bool {
	for _, k := range append(append([]Kind{}, preOrder...), postOrder...) {
		if len(e.manifest.Hooks[k]) > 0 {
			return true
		}
	}
	return false
}

// ConfiguredCommands lists every hook command across all kinds, in
// pre-then-post, declaration order, for `hook_status`'s
// `hooks_configured` field.
func (e *Engine) ConfiguredCommands() []string {
	var out []string
	for _, k := range append(append([]Kind{}, preOrder...), postOrder...) {
		for _, h := range e.manifest.Hooks[k] {
			out = append(out, h.Command)
		}
	}
	return out
}

// Recent returns the bounded log of past hook executions, or nil if no
// recent-executions store is configured.
func (e *Engine) Recent() []Execution {
	if e.recent == nil {
		return nil
	}
	return e.recent.List()
}

func (e *Engine) readWrappedCommand(commandID string) (string, bool) {
	path := wrappedCommandFile(commandID)
	defer func() { _ = os.Remove(path) }()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}

	var doc wrappedCommandDoc
	if err := json.Unmarshal(data, &doc); err != nil || doc.WrappedCommand == "" {
		return "", false
	}

	return doc.WrappedCommand, true
}
