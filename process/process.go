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
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	errpool "github.com/nabbar/cc-executor/errs/pool"
	"github.com/nabbar/cc-executor/logger"
)

// Handler receives the events a live Process emits. Every method may be
// called concurrently from different goroutines (the two stream readers,
// the wait goroutine, the timeout timer), and OnFrame is called
// concurrently with itself by the stdout and stderr readers - callers
// needing strict ordering should serialize inside their own
// implementation (C5's session writer does).
type Handler interface {
	OnFrame(OutputFrame)
	OnStateChange(Snapshot)
	OnHeartbeat()
	OnTokenLimit(marker string)
}

// Process is one Child Process: a spawned OS subprocess in its own
// process group, with concurrent stdout/stderr drains, pause/resume/
// cancel control, and timeout enforcement. It keeps no frames itself;
// the recent-frame window lives in session.Session.
type Process struct {
	spec Spec
	log  logger.Logger
	h    Handler

	mu       sync.Mutex
	cmd      *exec.Cmd
	state    State
	exitCode *int
	reason   Reason
	start    time.Time
	end      time.Time
	pgid     int

	stdoutBytes int64
	stderrBytes int64

	cancelOnce sync.Once
	cancelCh   chan struct{}
	reapedCh   chan struct{}

	errs errpool.Pool
}

// New prepares a Process; it neither validates nor spawns anything
// (Resolve and Start do).
func New(log logger.Logger, spec Spec, h Handler) *Process {
	return &Process{
		spec:     spec,
		log:      log.WithField("command_id", spec.CommandID),
		h:        h,
		state:    StateStarting,
		cancelCh: make(chan struct{}),
		reapedCh: make(chan struct{}),
		errs:     errpool.New(),
	}
}

// Resolve tokenizes/validates the command and resolves the executable
// against PATH, returning error.command_not_found before any process is
// created, per spec.md §4.4.
func (p *Process) Resolve() (executable string, args []string, err error) {
	if p.spec.Executable != "" {
		executable, args = p.spec.Executable, p.spec.Args
	} else {
		executable, args, err = tokenize(p.spec.Raw)
		if err != nil {
			return "", nil, err
		}
	}

	resolved, lookErr := exec.LookPath(executable)
	if lookErr != nil {
		return "", nil, fmt.Errorf("%w: %s", errNotFound, executable)
	}

	return resolved, args, nil
}

var errNotFound = errors.New("process: executable not found on PATH")

// IsNotFound reports whether err originated from Resolve's PATH lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}

// Start spawns the child and launches its stream readers, the wait
// goroutine, and (if MaxSeconds > 0) its timeout timer. It returns once
// the child is confirmed started (or failed to start); all subsequent
// activity is asynchronous and delivered through Handler.
func (p *Process) Start(ctx context.Context) error {
	executable, args, err := p.Resolve()
	if err != nil {
		p.transition(StateExited, intp(1), ReasonInternal)
		return err
	}

	cmd := exec.Command(executable, args...)
	cmd.Dir = p.spec.WorkingDir
	cmd.Env = mergeEnv(p.spec.Env, p.spec.SessionID, p.spec.CommandID)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdin = nil // explicitly closed/null sink per spec.md §4.4

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.transition(StateExited, intp(1), ReasonInternal)
		return err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.transition(StateExited, intp(1), ReasonInternal)
		return err
	}

	if err := cmd.Start(); err != nil {
		p.transition(StateExited, intp(1), ReasonInternal)
		return err
	}

	p.mu.Lock()
	p.cmd = cmd
	p.start = time.Now()
	p.pgid = cmd.Process.Pid
	p.mu.Unlock()

	p.transition(StateRunning, nil, "")

	var wg sync.WaitGroup
	wg.Add(2)
	go p.drain(&wg, stdout, StreamStdout, &p.stdoutBytes)
	go p.drain(&wg, stderr, StreamStderr, &p.stderrBytes)

	go p.wait(&wg)

	if p.spec.MaxSeconds > 0 {
		go p.enforceTimeout(ctx)
	}

	if p.spec.HeartbeatInterval > 0 {
		go p.heartbeatLoop()
	}

	return nil
}

func mergeEnv(overrides map[string]string, sessionID, commandID string) []string {
	base := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				base[kv[:i]] = kv[i+1:]
				break
			}
		}
	}

	for k, v := range overrides {
		base[k] = v
	}

	base["CC_EXECUTOR_SESSION_ID"] = sessionID
	base["CC_EXECUTOR_COMMAND_ID"] = commandID

	out := make([]string, 0, len(base))
	for k, v := range base {
		out = append(out, k+"="+v)
	}

	return out
}

func intp(i int) *int { return &i }

// Snapshot returns a race-free copy of the process's current state.
func (p *Process) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	dur := time.Duration(0)
	if !p.start.IsZero() {
		end := p.end
		if end.IsZero() {
			end = time.Now()
		}
		dur = end.Sub(p.start)
	}

	pid := 0
	if p.cmd != nil && p.cmd.Process != nil {
		pid = p.cmd.Process.Pid
	}

	return Snapshot{
		PID:             pid,
		PGID:            p.pgid,
		StartedAt:       p.start,
		State:           p.state,
		ExitCode:        p.exitCode,
		Reason:          p.reason,
		StdoutBytes:     p.stdoutBytes,
		StderrBytes:     p.stderrBytes,
		DurationSeconds: dur.Seconds(),
	}
}

func (p *Process) transition(s State, exitCode *int, reason Reason) {
	p.mu.Lock()
	p.state = s
	if exitCode != nil {
		p.exitCode = exitCode
	}
	if reason != "" {
		p.reason = reason
	}
	if s == StateExited {
		p.end = time.Now()
	}
	p.mu.Unlock()

	if p.h != nil {
		p.h.OnStateChange(p.Snapshot())
	}
}

// Err returns the combined error recorded by the wait goroutine (the
// stream readers record none), collected through errs/pool so no
// dedicated mutex is needed.
func (p *Process) Err() error {
	return p.errs.Error()
}
