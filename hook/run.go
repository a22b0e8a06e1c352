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
	"bytes"
	"os/exec"
	"syscall"
	"time"
)

// Outcome is the result of running a single hook program.
type Outcome struct {
	Hook     Hook
	ExitCode int
	Stdout   string
	Blocking bool // the hook wrote the "blocking" sentinel and exited non-zero
	TimedOut bool
	Err      error
}

// blockingSentinel is the line a pre-hook writes to stdout to escalate its
// own non-zero exit into error.precondition_failed rather than a mere
// hook.warning, per spec.md §4.3's "Exception" clause.
const blockingSentinel = "CC_EXECUTOR_HOOK_BLOCKING"

// runOne spawns one hook command in its own process group (the same
// group-signal discipline C4 uses), waits up to timeout, and escalates to
// SIGKILL after a short grace period if it does not exit in time.
func runOne(h Hook, env []string, timeout time.Duration) Outcome {
	cmd := exec.Command("/bin/sh", "-c", h.Command)
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		return Outcome{Hook: h, ExitCode: -1, Err: err}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return outcomeFrom(h, out.String(), err, false)
	case <-time.After(timeout):
		killGroup(cmd.Process.Pid, syscall.SIGTERM)

		select {
		case err := <-done:
			return outcomeFrom(h, out.String(), err, true)
		case <-time.After(2 * time.Second):
			killGroup(cmd.Process.Pid, syscall.SIGKILL)
			<-done
			return Outcome{Hook: h, ExitCode: -1, Stdout: out.String(), TimedOut: true}
		}
	}
}

func outcomeFrom(h Hook, stdout string, err error, timedOut bool) Outcome {
	code := 0
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			code = ee.ExitCode()
		} else {
			code = -1
		}
	}

	return Outcome{
		Hook:     h,
		ExitCode: code,
		Stdout:   stdout,
		Blocking: code != 0 && bytes.Contains([]byte(stdout), []byte(blockingSentinel)),
		TimedOut: timedOut,
		Err:      err,
	}
}

func killGroup(pid int, sig syscall.Signal) {
	if pgid, err := syscall.Getpgid(pid); err == nil {
		_ = syscall.Kill(-pgid, sig)
	} else {
		_ = syscall.Kill(pid, sig)
	}
}
