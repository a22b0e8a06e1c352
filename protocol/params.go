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

// executeParams is `execute`'s params object, spec.md §4.5. Command is
// the raw-string form; Executable/Args is the structured, preferred
// form. Exactly one of Command or Executable should be set.
type executeParams struct {
	Command    string            `json:"command,omitempty"`
	Executable string            `json:"executable,omitempty"`
	Args       []string          `json:"args,omitempty"`
	Timeout    float64           `json:"timeout,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
}

type executeResult struct {
	Status string `json:"status"`
	PID    int    `json:"pid"`
	PGID   int    `json:"pgid"`
}

// controlParams is `control`'s params object.
type controlParams struct {
	Type string `json:"type"`
}

type controlResult struct {
	Status string `json:"status"`
}

type hookStatusResult struct {
	Enabled          bool            `json:"enabled"`
	HooksConfigured  []string        `json:"hooks_configured"`
	RecentExecutions []hookExecution `json:"recent_executions"`
	Statistics       hookStatistics  `json:"statistics"`
}

type hookExecution struct {
	Kind      string `json:"kind"`
	Command   string `json:"command"`
	CommandID string `json:"command_id"`
	ExitCode  int    `json:"exit_code"`
	TimedOut  bool   `json:"timed_out"`
	At        string `json:"at"`
}

type hookStatistics struct {
	Total    int `json:"total"`
	Failed   int `json:"failed"`
	TimedOut int `json:"timed_out"`
}

type connectedParams struct {
	SessionID string `json:"session_id"`
	Version   string `json:"version"`
}

type processStateParams struct {
	PID      int    `json:"pid"`
	PGID     int    `json:"pgid"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type processOutputParams struct {
	Stream    string `json:"stream"`
	Data      string `json:"data"`
	Truncated bool   `json:"truncated"`
}

type heartbeatParams struct {
	Timestamp string `json:"timestamp"`
}

type hookWarningParams struct {
	Kind    string `json:"kind"`
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

type validationWarningParams struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type tokenLimitParams struct {
	Limit       string `json:"limit"`
	Suggestion  string `json:"suggestion"`
	Recoverable bool   `json:"recoverable"`
}

type backpressureParams struct {
	Reason string `json:"reason"`
}
