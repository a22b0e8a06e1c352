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
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ErrTerminal is returned by any control method once the process has left
// a non-terminal state, per spec.md §4.4's "further control requests for
// this command fail."
var ErrTerminal = errors.New("process: already terminating or exited")

// Pause sends the stop signal to the whole process group. State
// transitions running -> paused; streaming continues draining any bytes
// already buffered in the pipes.
func (p *Process) Pause() error {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return ErrTerminal
	}
	pgid := p.pgid
	p.mu.Unlock()

	if err := killGroup(pgid, syscall.SIGSTOP); err != nil {
		return err
	}

	p.transition(StatePaused, nil, "")
	return nil
}

// Resume sends the continue signal to the whole process group. State
// transitions paused -> running.
func (p *Process) Resume() error {
	p.mu.Lock()
	if p.state != StatePaused {
		p.mu.Unlock()
		return ErrTerminal
	}
	pgid := p.pgid
	p.mu.Unlock()

	if err := killGroup(pgid, syscall.SIGCONT); err != nil {
		return err
	}

	p.transition(StateRunning, nil, "")
	return nil
}

// Cancel moves the process to terminating and runs the graceful-then-
// forceful kill sequence. It is idempotent: a second call while already
// terminating is a no-op, satisfying spec.md §8's cancel-idempotence
// property.
func (p *Process) Cancel() error {
	p.mu.Lock()
	if p.state == StateExited {
		p.mu.Unlock()
		return ErrTerminal
	}
	p.mu.Unlock()

	p.cancelWithReason(ReasonCancelled)
	return nil
}

// triggerTokenLimit is invoked from inside drain() - the very goroutine
// wg.Wait() (see wait, below) is waiting on - so cancelWithReason must run
// on a goroutine of its own. Calling it inline here would block this drain
// goroutine on <-p.reapedCh, which only closes once wait()'s wg.Wait() has
// returned, which in turn needs this same goroutine to reach its deferred
// wg.Done() first: a permanent self-deadlock.
func (p *Process) triggerTokenLimit() {
	go p.cancelWithReason(ReasonTokenLimit)
}

// cancelWithReason is the single entry point for every path that ends a
// live process under supervisor control: explicit CANCEL, timeout, and
// token-limit detection all funnel through here, differing only in the
// recorded Reason - spec.md §5 calls this out explicitly ("Timeouts
// propagate through the same code path as CANCEL").
func (p *Process) cancelWithReason(reason Reason) {
	var run bool

	p.cancelOnce.Do(func() {
		run = true

		p.mu.Lock()
		if p.state == StateExited {
			p.mu.Unlock()
			return
		}
		p.state = StateTerminating
		p.reason = reason
		pgid := p.pgid
		p.mu.Unlock()

		if p.h != nil {
			p.h.OnStateChange(p.Snapshot())
		}

		_ = killGroup(pgid, syscall.SIGTERM)

		grace := p.spec.GracePeriod
		if grace <= 0 {
			grace = 10 * time.Second
		}

		select {
		case <-p.reapedCh:
		case <-time.After(grace):
			_ = killGroup(pgid, syscall.SIGKILL)
			<-p.reapedCh
		}
	})

	_ = run
}

func killGroup(pgid int, sig syscall.Signal) error {
	if pgid <= 0 {
		return nil
	}
	return syscall.Kill(-pgid, sig)
}

// wait blocks until both stream readers have hit EOF, then waits on the
// child so no zombie is left, and transitions to exited - spec.md §4.4's
// Reap step. It is the sole authority for the terminal transition.
func (p *Process) wait(wg *sync.WaitGroup) {
	wg.Wait()

	err := p.cmd.Wait()
	exitCode := 0

	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
				if ws.Signaled() {
					exitCode = -int(ws.Signal())
				} else {
					exitCode = ws.ExitStatus()
				}
			} else {
				exitCode = 1
			}
			p.errs.Add(err)
		} else {
			exitCode = 1
			p.errs.Add(err)
		}
	}

	p.mu.Lock()
	reason := p.reason
	if reason == "" {
		reason = ReasonNormal
	}
	p.mu.Unlock()

	p.transition(StateExited, &exitCode, reason)
	close(p.reapedCh)
}

// enforceTimeout watches MaxSeconds and, on expiry, runs the same cancel
// sequence as an explicit CANCEL but with Reason = timeout.
func (p *Process) enforceTimeout(ctx context.Context) {
	d := time.Duration(p.spec.MaxSeconds * float64(time.Second))
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		p.cancelWithReason(ReasonTimeout)
	case <-p.reapedCh:
	case <-ctx.Done():
		p.cancelWithReason(ReasonCancelled)
	}
}

// heartbeatLoop emits Handler.OnHeartbeat at a fixed interval while the
// command is active, per spec.md §4.4's "heartbeat is emitted... so that
// long-silent children do not cause idle connections to be torn down."
func (p *Process) heartbeatLoop() {
	t := time.NewTicker(p.spec.HeartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			if p.h != nil {
				p.h.OnHeartbeat()
			}
		case <-p.reapedCh:
			return
		}
	}
}
