// Copyright 2026 The routecore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bgp

import (
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/routecore/routecore"
)

// outputBusyThreshold is the pending-write count above which the
// output queue reports busy and the peer stops batching new packets.
const outputBusyThreshold = 20

// SocketClient owns one TCP connection to a peer. I/O runs on helper
// goroutines; every completion — connects, write acknowledgements,
// assembled inbound messages, errors — is posted to the event loop,
// so consumers observe them single-threadedly and in completion
// order.
//
// Reads are header-driven: 19 bytes first, then the remainder
// indicated by the length field, then dispatch of the assembled
// message.
type SocketClient struct {
	loop   *routecore.EventLoop
	conn   net.Conn
	logger *zap.Logger

	// write queue: the writer goroutine drains sendQ in order
	sendQ         chan outboundMessage
	pendingWrites int

	onMessage func(Header, []byte)
	onError   func(error)

	closed bool
}

type outboundMessage struct {
	buf []byte
	cb  func(error)
}

const sendQueueDepth = 128

// NewSocketClient builds a client delivering completions through
// loop. onMessage receives each assembled inbound message; onError
// receives connection failures (including EOF).
func NewSocketClient(loop *routecore.EventLoop, onMessage func(Header, []byte), onError func(error)) *SocketClient {
	return &SocketClient{
		loop:      loop,
		logger:    routecore.Log().Named("bgp.socket"),
		sendQ:     make(chan outboundMessage, sendQueueDepth),
		onMessage: onMessage,
		onError:   onError,
	}
}

// Connect dials addr without blocking the loop; cb runs on the loop
// with the dial outcome. On success the read and write pumps start.
func (s *SocketClient) Connect(addr string, timeout time.Duration, cb func(error)) {
	go func() {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		s.loop.Post(func() {
			if err != nil {
				cb(err)
				return
			}
			s.Start(conn)
			cb(nil)
		})
	}()
}

// Start adopts an established connection (inbound accept or test
// pipe) and begins pumping.
func (s *SocketClient) Start(conn net.Conn) {
	s.conn = conn
	go s.readLoop(conn)
	go s.writeLoop(conn)
}

// SendMessage queues an encoded message; cb, if non-nil, runs on the
// loop when the write has completed. Messages go out in submission
// order.
func (s *SocketClient) SendMessage(buf []byte, cb func(error)) {
	if s.closed {
		if cb != nil {
			cb(net.ErrClosed)
		}
		return
	}
	s.pendingWrites++
	s.sendQ <- outboundMessage{buf: buf, cb: cb}
}

// OutputQueueBusy reports whether the pending-write count exceeds
// the busy threshold; the peer stops draining its RIB queues while
// busy.
func (s *SocketClient) OutputQueueBusy() bool {
	return s.pendingWrites > outputBusyThreshold
}

// PendingWrites returns the number of writes not yet completed.
func (s *SocketClient) PendingWrites() int { return s.pendingWrites }

// Close tears the connection down. Pending completions are silently
// discarded.
func (s *SocketClient) Close() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.sendQ)
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *SocketClient) readLoop(conn net.Conn) {
	hdr := make([]byte, HeaderLen)
	for {
		if _, err := io.ReadFull(conn, hdr); err != nil {
			s.postError(err)
			return
		}
		h, err := DecodeHeader(hdr)
		if err != nil {
			s.postError(err)
			return
		}
		body := make([]byte, int(h.Length)-HeaderLen)
		if _, err := io.ReadFull(conn, body); err != nil {
			s.postError(err)
			return
		}
		s.loop.Post(func() {
			if !s.closed {
				s.onMessage(h, body)
			}
		})
	}
}

func (s *SocketClient) writeLoop(conn net.Conn) {
	for m := range s.sendQ {
		_, err := conn.Write(m.buf)
		cb := m.cb
		s.loop.Post(func() {
			s.pendingWrites--
			if cb != nil && !s.closed {
				cb(err)
			}
		})
		if err != nil {
			s.postError(err)
			return
		}
	}
}

func (s *SocketClient) postError(err error) {
	s.loop.Post(func() {
		if !s.closed {
			s.logger.Debug("connection error", zap.Error(err))
			s.onError(err)
		}
	})
}
