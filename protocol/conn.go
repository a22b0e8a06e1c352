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
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nabbar/cc-executor/logger"
	"github.com/nabbar/cc-executor/process"
	"github.com/nabbar/cc-executor/session"
)

// outboundHighWater is the serialized writer's queue depth at which a
// session is considered back-pressured, per spec.md §5. This
// implementation does not pause the stream-reader goroutines at the
// low-water mark the way spec.md describes (process.Process has no
// pause-draining hook); instead, once the queue is full a frame is
// dropped from consideration for back-pressure accounting and, if the
// condition persists for outboundOverflowStreak consecutive sends, the
// session is torn down with reason = backpressure_overflow. This is a
// documented simplification of the full high/low-water-mark scheme.
const (
	outboundHighWater      = 4096
	outboundOverflowStreak = 8
)

// conn is one WebSocket connection's server-side transport: a serialized
// writer goroutine draining an outbound queue, grounded on
// other_examples' backend-overseer-client.go.go writeMu pattern, adapted
// from a client-side mutex-guarded write to a server-side queued one so
// a slow reader cannot block the goroutines producing frames.
type conn struct {
	srv  *Server
	ws   *websocket.Conn
	sess *session.Session
	log  logger.Logger

	out  chan []byte
	done chan struct{}

	mu             sync.Mutex
	overflowStreak int
	closed         bool
}

func newConn(srv *Server, ws *websocket.Conn, sess *session.Session) *conn {
	return &conn{
		srv:  srv,
		ws:   ws,
		sess: sess,
		log:  srv.log.WithField("session_id", sess.ID),
		out:  make(chan []byte, outboundHighWater),
		done: make(chan struct{}),
	}
}

func (c *conn) writerLoop() {
	for {
		select {
		case b, ok := <-c.out:
			if !ok {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.Debug("write failed", logger.Fields{"error": err})
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// enqueue attempts a non-blocking send; on a full queue it counts toward
// the overflow streak and, past outboundOverflowStreak, tears the
// session down per spec.md §5's backpressure_overflow path.
func (c *conn) enqueue(b []byte) {
	select {
	case c.out <- b:
		c.mu.Lock()
		c.overflowStreak = 0
		c.mu.Unlock()
	default:
		c.mu.Lock()
		c.overflowStreak++
		streak := c.overflowStreak
		c.mu.Unlock()

		if streak >= outboundOverflowStreak {
			c.overflow()
		}
	}
}

func (c *conn) overflow() {
	c.srv.metrics.BackpressureTrip.Inc()

	notif := newNotification(NotifyBackpressureOverflow, backpressureParams{Reason: "writer queue exceeded high-water mark"})
	if b, err := json.Marshal(notif); err == nil {
		select {
		case c.out <- b:
		default:
		}
	}

	c.Close()
}

func (c *conn) send(method string, params interface{}) {
	b, err := json.Marshal(newNotification(method, params))
	if err != nil {
		c.log.Error("marshal notification failed", logger.Fields{"method": method, "error": err})
		return
	}
	c.enqueue(b)
}

func (c *conn) reply(resp *Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("marshal response failed", logger.Fields{"error": err})
		return
	}
	c.enqueue(b)
}

func (c *conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	_ = c.ws.Close()

	// Close can be reached from OnFrame/OnTokenLimit by way of
	// enqueue->overflow, which runs on a process.Process drain goroutine.
	// Proc.Cancel ultimately blocks on that same process reaping its
	// streams, so it must never be called inline from here; dispatch it on
	// its own goroutine regardless of caller.
	if cmd := c.sess.ActiveCommand(); cmd != nil && cmd.Proc != nil {
		go func(p *process.Process) { _ = p.Cancel() }(cmd.Proc)
	}

	c.srv.sessions.Remove(c.sess.ID)
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
