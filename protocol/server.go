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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nabbar/cc-executor/config"
	"github.com/nabbar/cc-executor/errs"
	"github.com/nabbar/cc-executor/hook"
	"github.com/nabbar/cc-executor/logger"
	"github.com/nabbar/cc-executor/metrics"
	"github.com/nabbar/cc-executor/process"
	"github.com/nabbar/cc-executor/session"
	"github.com/nabbar/cc-executor/timing"
)

// ServiceVersion is advertised in the `connected` notification, per
// spec.md §4.5.
const ServiceVersion = "1.0.0"

// Server is C5's entry point: it upgrades a single WebSocket path to a
// session and dispatches its requests against C1-C4.
type Server struct {
	cfg      *config.Config
	log      logger.Logger
	sessions *session.Registry
	hooks    *hook.Engine
	oracle   *timing.Oracle
	metrics  *metrics.Registry
	upgrader websocket.Upgrader
}

func NewServer(cfg *config.Config, log logger.Logger, sessions *session.Registry, hooks *hook.Engine, oracle *timing.Oracle, mx *metrics.Registry) *Server {
	return &Server{
		cfg:      cfg,
		log:      log.WithField("component", "protocol.server"),
		sessions: sessions,
		hooks:    hooks,
		oracle:   oracle,
		metrics:  mx,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
	}
}

// ServeHTTP upgrades one connection to the WebSocket protocol and runs
// it to completion; it never returns until the connection closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", logger.Fields{"error": err})
		return
	}

	sess, err := s.sessions.Create(s.cfg.RecentFrameBytes)
	if err != nil {
		_ = ws.WriteMessage(websocket.TextMessage, mustMarshal(newErrorResponse(nil, errs.CodeInternalError.RPCCode(), "server at max_sessions capacity", nil)))
		_ = ws.Close()
		return
	}

	s.metrics.SessionsTotal.Inc()
	s.metrics.SessionsActive.Inc()

	c := newConn(s, ws, sess)
	go c.writerLoop()

	c.send(NotifyConnected, connectedParams{SessionID: sess.ID, Version: ServiceVersion})

	defer func() {
		c.Close()
		s.metrics.SessionsActive.Dec()
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(c, raw)
	}
}

func (s *Server) handleMessage(c *conn, raw []byte) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		c.reply(newErrorResponse(nil, errs.CodeInvalidRequest.RPCCode(), errs.CodeInvalidRequest.RPCMessage(), nil))
		return
	}

	switch req.Method {
	case MethodExecute:
		s.handleExecute(c, req)
	case MethodControl:
		s.handleControl(c, req)
	case MethodHookStatus:
		s.handleHookStatus(c, req)
	default:
		c.reply(newErrorResponse(req.ID, errs.CodeMethodNotFound.RPCCode(), errs.CodeMethodNotFound.RPCMessage(), nil))
	}
}

func (s *Server) handleExecute(c *conn, req Request) {
	var p executeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			c.reply(newErrorResponse(req.ID, errs.CodeInvalidParams.RPCCode(), errs.CodeInvalidParams.RPCMessage(), nil))
			return
		}
	}
	if p.Command == "" && p.Executable == "" {
		c.reply(newErrorResponse(req.ID, errs.CodeInvalidParams.RPCCode(), errs.CodeInvalidParams.RPCMessage(), "command or executable is required"))
		return
	}

	name := p.Executable
	if name == "" {
		name = firstToken(p.Command)
	}

	warnings := validateExecuteParams(p)

	if !s.allowed(name) {
		c.reply(newErrorResponse(req.ID, errs.CodeCommandNotAllowed.RPCCode(), errs.CodeCommandNotAllowed.RPCMessage(), name))
		return
	}

	commandID := uuid.NewString()
	isClaude := isClaudeCommand(name)

	preRes := s.hooks.RunPre(hook.Request{
		CommandID: commandID,
		SessionID: c.sess.ID,
		Command:   p.Command,
		IsClaude:  isClaude,
	})

	if preRes.Blocked {
		c.reply(newErrorResponse(req.ID, errs.CodePreconditionFailed.RPCCode(), errs.CodePreconditionFailed.RPCMessage(), preRes.BlockedBy))
		return
	}

	raw := p.Command
	if preRes.WrappedCommand != "" {
		raw = preRes.WrappedCommand
	}

	est := s.oracle.Estimate(context.Background(), name, raw)
	maxSeconds := est.MaxSeconds
	if p.Timeout > 0 && p.Timeout < maxSeconds {
		maxSeconds = p.Timeout
	} else if p.Timeout > maxSeconds {
		warnings = append(warnings, validationWarningParams{
			Field:   "timeout",
			Message: fmt.Sprintf("requested timeout of %.0fs exceeds the estimated ceiling and was clamped to %.0fs", p.Timeout, maxSeconds),
		})
	}

	spec := process.Spec{
		CommandID:         commandID,
		SessionID:         c.sess.ID,
		Raw:               raw,
		Executable:        p.Executable,
		Args:              p.Args,
		Env:               p.Env,
		MaxSeconds:        maxSeconds,
		GracePeriod:       s.cfg.GraceDuration(),
		MaxLineBytes:      s.cfg.MaxLineBytes,
		RecentFrameBytes:  s.cfg.RecentFrameBytes,
		StreamChunkBytes:  s.cfg.StreamChunkBytes,
		TokenLimitMarker:  s.cfg.TokenLimitMarker,
		HeartbeatInterval: s.cfg.HeartbeatDuration(),
	}

	h := &cmdHandler{c: c, srv: s, sess: c.sess, commandID: commandID, executable: name, rawCommand: raw, isClaude: isClaude}
	proc := process.New(s.log, spec, h)

	cmd := &session.Command{ID: commandID, Proc: proc}
	if !c.sess.TryBeginCommand(cmd) {
		c.reply(newErrorResponse(req.ID, errs.CodeInvalidParams.RPCCode(), "a command is already in progress on this session", nil))
		return
	}

	c.sess.Recent().Reset()

	ctx, cancel := context.WithCancel(context.Background())
	_ = cancel // the process's own enforceTimeout owns cancellation; ctx only threads shutdown-on-disconnect in a future extension

	if err := proc.Start(ctx); err != nil {
		c.sess.EndCommand(commandID)
		if process.IsNotFound(err) {
			c.reply(newErrorResponse(req.ID, errs.CodeCommandNotFound.RPCCode(), errs.CodeCommandNotFound.RPCMessage(), name))
			return
		}
		c.reply(newErrorResponse(req.ID, errs.CodeInternalError.RPCCode(), errs.CodeInternalError.RPCMessage(), err.Error()))
		return
	}

	h.started.Store(true)
	s.metrics.CommandsStarted.Inc()

	snap := proc.Snapshot()
	c.reply(newResponse(req.ID, executeResult{Status: "started", PID: snap.PID, PGID: snap.PGID}))
	c.send(NotifyProcessStarted, processStateParams{PID: snap.PID, PGID: snap.PGID})

	for _, w := range warnings {
		c.send(NotifyCommandValidationWarn, w)
	}

	for _, w := range preRes.Warnings {
		c.send(NotifyHookWarning, hookWarningParams{Kind: string(w.Kind), Command: w.Command, Reason: w.Reason})
	}
}

func (s *Server) handleControl(c *conn, req Request) {
	var p controlParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		c.reply(newErrorResponse(req.ID, errs.CodeInvalidParams.RPCCode(), errs.CodeInvalidParams.RPCMessage(), nil))
		return
	}

	cmd := c.sess.ActiveCommand()
	if cmd == nil || cmd.Proc == nil {
		c.reply(newErrorResponse(req.ID, errs.CodeInvalidParams.RPCCode(), "no command in progress", nil))
		return
	}

	var (
		opErr  error
		status string
		notify string
	)

	switch p.Type {
	case ControlPause:
		opErr, status, notify = cmd.Proc.Pause(), "paused", NotifyProcessPaused
	case ControlResume:
		opErr, status, notify = cmd.Proc.Resume(), "resumed", NotifyProcessResumed
	case ControlCancel:
		opErr, status, notify = cmd.Proc.Cancel(), "cancelled", NotifyProcessCancelled
	default:
		c.reply(newErrorResponse(req.ID, errs.CodeInvalidParams.RPCCode(), "unknown control type", p.Type))
		return
	}

	if opErr != nil {
		c.reply(newErrorResponse(req.ID, errs.CodeInvalidParams.RPCCode(), opErr.Error(), nil))
		return
	}

	c.reply(newResponse(req.ID, controlResult{Status: status}))

	snap := cmd.Proc.Snapshot()
	c.send(notify, processStateParams{PID: snap.PID, PGID: snap.PGID})
}

func (s *Server) handleHookStatus(c *conn, req Request) {
	executions := s.hooks.Recent()

	out := make([]hookExecution, 0, len(executions))
	failed, timedOut := 0, 0
	for _, e := range executions {
		out = append(out, hookExecution{
			Kind:      string(e.Kind),
			Command:   e.Command,
			CommandID: e.CommandID,
			ExitCode:  e.ExitCode,
			TimedOut:  e.TimedOut,
			At:        e.At.Format("2006-01-02T15:04:05.000Z07:00"),
		})
		if e.TimedOut {
			timedOut++
		} else if e.ExitCode != 0 {
			failed++
		}
	}

	c.reply(newResponse(req.ID, hookStatusResult{
		Enabled:          s.hooks.Enabled(),
		HooksConfigured:  s.hooks.ConfiguredCommands(),
		RecentExecutions: out,
		Statistics:       hookStatistics{Total: len(out), Failed: failed, TimedOut: timedOut},
	}))
}

func (s *Server) allowed(name string) bool {
	if len(s.cfg.AllowedExecutables) == 0 {
		return true
	}
	base := filepath.Base(name)
	for _, a := range s.cfg.AllowedExecutables {
		if a == name || a == base {
			return true
		}
	}
	return false
}

func firstToken(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

func isClaudeCommand(executable string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(executable)), "claude")
}

// reservedEnvKeys are overwritten by process.mergeEnv after any caller
// override, per spec.md §4.4's session/command correlation requirement.
var reservedEnvKeys = []string{"CC_EXECUTOR_SESSION_ID", "CC_EXECUTOR_COMMAND_ID"}

// validateExecuteParams runs the non-blocking checks behind
// command.validation_warning: conditions worth surfacing to the caller
// that do not themselves refuse the command, unlike CodeCommandNotAllowed
// or CodeInvalidParams above.
func validateExecuteParams(p executeParams) []validationWarningParams {
	var warnings []validationWarningParams

	for _, k := range reservedEnvKeys {
		if _, ok := p.Env[k]; ok {
			warnings = append(warnings, validationWarningParams{
				Field:   "env." + k,
				Message: fmt.Sprintf("env var %q is reserved and will be overridden with the session/command id", k),
			})
		}
	}

	return warnings
}

func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"internal_error"}}`)
	}
	return b
}
