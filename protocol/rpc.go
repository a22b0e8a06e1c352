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

// Package protocol implements the wire half of C5: one WebSocket
// connection per session, JSON-RPC 2.0 requests/responses, and
// server-initiated notifications, per spec.md §4.5 and §6. The message
// shapes follow the same request/response/notification/error split as
// other_examples' internal-harness-rpc.go.go; the transport follows
// other_examples' backend-overseer-client.go.go (gorilla/websocket,
// a mutex-serialized writer, dispatch-by-type on the read side).
package protocol

import "encoding/json"

// Request is an inbound JSON-RPC 2.0 request. A nil ID marks it as a
// notification from the client, which this service does not expect but
// must not crash on.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is the server's reply to one Request, carrying exactly one of
// Result or Error.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Notification is a server-initiated frame with no id, per spec.md §4.5.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Error is the JSON-RPC 2.0 error object, projected from the closed
// errs/rpc.go taxonomy.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

const jsonrpcVersion = "2.0"

func newResponse(id interface{}, result interface{}) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: id, Result: result}
}

func newErrorResponse(id interface{}, code int, message string, data interface{}) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: id, Error: &Error{Code: code, Message: message, Data: data}}
}

func newNotification(method string, params interface{}) *Notification {
	return &Notification{JSONRPC: jsonrpcVersion, Method: method, Params: params}
}

// Methods spec.md §4.5 accepts.
const (
	MethodExecute    = "execute"
	MethodControl    = "control"
	MethodHookStatus = "hook_status"
)

// Notification names spec.md §4.5 emits.
const (
	NotifyConnected             = "connected"
	NotifyProcessStarted        = "process.started"
	NotifyProcessPaused         = "process.paused"
	NotifyProcessResumed        = "process.resumed"
	NotifyProcessCancelled      = "process.cancelled"
	NotifyProcessCompleted      = "process.completed"
	NotifyProcessOutput         = "process.output"
	NotifyHeartbeat             = "heartbeat"
	NotifyHookWarning           = "hook.warning"
	NotifyCommandValidationWarn = "command.validation_warning"
	NotifyTokenLimitExceeded    = "error.token_limit_exceeded"
	NotifyBackpressureOverflow  = "error.backpressure_overflow"
)

// Control request types, spec.md §4.5's `control` method.
const (
	ControlPause  = "PAUSE"
	ControlResume = "RESUME"
	ControlCancel = "CANCEL"
)
