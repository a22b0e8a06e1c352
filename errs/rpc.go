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

package errs

// Domain codes for the JSON-RPC error taxonomy. These are CodeError values
// (the internal uint16 classification every component returns) rather than
// the wire-level JSON-RPC codes themselves; the protocol package projects
// each one to its negative JSON-RPC code and registered message.
const (
	CodeInvalidRequest CodeError = iota + 32600
	CodeMethodNotFound
	CodeInvalidParams
	CodeInternalError
)

const (
	CodeCommandNotAllowed CodeError = iota + 32000
	CodeCommandNotFound
	CodePreconditionFailed
	CodeTokenLimitExceeded
	CodeBackpressureOverflow
)

// rpcWire holds the fixed JSON-RPC code and message for a CodeError in the
// taxonomy above. Looked up by RPCCode/RPCMessage, which the protocol
// layer uses to build its error responses.
var rpcWire = map[CodeError]struct {
	code int
	msg  string
}{
	CodeInvalidRequest:       {-32600, "Malformed JSON-RPC."},
	CodeMethodNotFound:       {-32601, "Unknown method."},
	CodeInvalidParams:        {-32602, "Missing or invalid params."},
	CodeInternalError:        {-32603, "Unexpected server failure."},
	CodeCommandNotAllowed:    {-32000, "Executable not in allow-list."},
	CodeCommandNotFound:      {-32001, "Executable not resolvable on PATH."},
	CodePreconditionFailed:   {-32002, "Blocking pre-hook reported failure."},
	CodeTokenLimitExceeded:   {-32003, "LLM-CLI output token quota hit."},
	CodeBackpressureOverflow: {-32004, "Session torn down due to writer lag."},
}

func init() {
	RegisterIdFctMessage(CodeInvalidRequest, rpcMessage)
	RegisterIdFctMessage(CodeCommandNotAllowed, rpcMessage)
}

func rpcMessage(code CodeError) string {
	if w, ok := rpcWire[code]; ok {
		return w.msg
	}

	return NullMessage
}

// RPCCode returns the negative JSON-RPC wire code for a taxonomy CodeError,
// or -32603 (internal_error) if c is not one of the codes above.
func (c CodeError) RPCCode() int {
	if w, ok := rpcWire[c]; ok {
		return w.code
	}

	return rpcWire[CodeInternalError].code
}

// IsRPCCode reports whether c belongs to the closed JSON-RPC taxonomy.
func (c CodeError) IsRPCCode() bool {
	_, ok := rpcWire[c]
	return ok
}

// RPCMessage returns the fixed, client-facing message for a taxonomy
// CodeError - the same string RegisterIdFctMessage wires into c.Error() -
// or an empty string if c is not one of the codes above.
func (c CodeError) RPCMessage() string {
	return rpcMessage(c)
}
