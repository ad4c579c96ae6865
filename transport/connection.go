// Copyright 2025 The tidewire Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport implements the non-blocking connection lifecycle:
// per-connection read/write goroutines backed by the runtime netpoller,
// a sharded reactor pool that runs filter chain passes, and a graceful
// drain-and-close shutdown sequence.
package transport

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tidewire/tidewire/filter"
	"github.com/tidewire/tidewire/internal/attribute"
	"github.com/tidewire/tidewire/internal/buffer"
	"github.com/tidewire/tidewire/internal/rescue"
)

func newError(format string, args ...any) error {
	return errors.Errorf("transport: "+format, args...)
}

var ErrConnClosed = newError("connection closed")

// State is a Connection's lifecycle stage.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventShutdown is the synthetic message Transport.Shutdown passes to
// FireEvent on every live connection. EventTimeout names the idle, read
// and write timeouts, but nothing fires it: when a deadline expires the
// read loop closes the connection without sending an event.
type (
	EventTimeout  struct{ Kind string } // "idle", "read" or "write"
	EventShutdown struct{}
)

// Connection is one accepted socket, wired to its own filter chain, read
// goroutine, write goroutine and attribute holder.
type Connection struct {
	id   uuid.UUID
	raw  net.Conn
	mm   buffer.MemoryManager
	attr *attribute.Holder

	chain   *filter.Chain
	reactor *reactor
	metrics Metrics

	readBufSize int
	writeQueue  chan buffer.Buffer

	idleTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	state     atomic.Int32
	closeOnce sync.Once
	closed    chan struct{}
	onClose   func(*Connection)
}

// connOptions configures a Connection at construction; Transport fills
// this in from its own Options so callers never see it directly.
type connOptions struct {
	mm           buffer.MemoryManager
	reactor      *reactor
	metrics      Metrics
	newChain     func() *filter.Chain
	readBufSize  int
	writeQueue   int
	idleTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	onClose      func(*Connection)
}

func newConnection(raw net.Conn, opt connOptions) *Connection {
	c := &Connection{
		id:           uuid.New(),
		raw:          raw,
		mm:           opt.mm,
		attr:         attribute.NewHolder(nil),
		chain:        opt.newChain(),
		reactor:      opt.reactor,
		metrics:      opt.metrics,
		readBufSize:  opt.readBufSize,
		writeQueue:   make(chan buffer.Buffer, opt.writeQueue),
		idleTimeout:  opt.idleTimeout,
		readTimeout:  opt.readTimeout,
		writeTimeout: opt.writeTimeout,
		closed:       make(chan struct{}),
		onClose:      opt.onClose,
	}
	if c.metrics == nil {
		c.metrics = NopMetrics{}
	}
	return c
}

// ID returns the connection's unique identifier, also used to pick its
// reactor shard.
func (c *Connection) ID() uuid.UUID { return c.id }

// State reports the connection's current lifecycle stage.
func (c *Connection) State() State { return State(c.state.Load()) }

// Attributes returns the connection's attribute holder, satisfying
// filter.Connection.
func (c *Connection) Attributes() *attribute.Holder { return c.attr }

// serve starts the read and write goroutines and blocks until the
// connection is closed. Transport calls this once per accepted socket
// in its own goroutine.
func (c *Connection) serve() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer rescue.HandleCrash()
		c.writeLoop()
	}()
	go func() {
		defer wg.Done()
		defer rescue.HandleCrash()
		c.readLoop()
	}()
	wg.Wait()
}

func (c *Connection) readLoop() {
	defer c.Close()

	for {
		if c.readTimeout > 0 {
			_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
		} else if c.idleTimeout > 0 {
			_ = c.raw.SetReadDeadline(time.Now().Add(c.idleTimeout))
		}

		scratch := make([]byte, c.readBufSize)
		n, err := c.raw.Read(scratch)
		if n > 0 {
			buf := c.mm.Allocate(n)
			buf.Put(scratch[:n])
			buf.SetPosition(0)
			c.metrics.BytesRead(n)
			c.submitRead(buf)
		}
		if err != nil {
			return
		}
	}
}

// submitRead hands a freshly read buffer to the reactor shard this
// connection is bound to, so filter chain execution for this connection
// is always serialized even though many connections share the pool.
func (c *Connection) submitRead(buf buffer.Buffer) {
	c.reactor.Submit(c.id, func() {
		if err := c.chain.FireRead(c, c.attr, buf); err != nil {
			c.metrics.ParseError()
			c.Close()
		}
	})
}

// Send runs msg through the write-direction filter chain on this
// connection's reactor shard; the terminal filter is expected to call
// Write with the fully encoded bytes.
func (c *Connection) Send(msg any) {
	c.reactor.Submit(c.id, func() {
		if err := c.chain.FireWrite(c, c.attr, msg); err != nil {
			c.Close()
		}
	})
}

// Write enqueues an already-encoded payload for the write goroutine.
// Filters call this as the last step of the write chain; it satisfies
// filter.Connection so filters don't need a transport import.
func (c *Connection) Write(msg any) error {
	if c.State() != StateOpen {
		return ErrConnClosed
	}

	var buf buffer.Buffer
	switch v := msg.(type) {
	case buffer.Buffer:
		buf = v
	case []byte:
		buf = c.mm.Wrap(v)
	default:
		return newError("cannot write value of type %T", msg)
	}

	select {
	case c.writeQueue <- buf:
		return nil
	case <-c.closed:
		return ErrConnClosed
	}
}

func (c *Connection) writeLoop() {
	for {
		select {
		case buf, ok := <-c.writeQueue:
			if !ok {
				return
			}
			c.flush(buf)
		case <-c.closed:
			// Drain whatever is already queued before returning so a
			// final response written during close still reaches the
			// socket.
			for {
				select {
				case buf := <-c.writeQueue:
					c.flush(buf)
				default:
					return
				}
			}
		}
	}
}

func (c *Connection) flush(buf buffer.Buffer) {
	defer buf.TryDispose()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	p := buf.Peek()
	n, err := c.raw.Write(p)
	c.metrics.BytesWritten(n)
	if err != nil {
		c.Close()
	}
}

// Close transitions the connection to closed, notifies the filter chain
// and releases the underlying socket. Safe to call more than once or
// concurrently.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))
		_ = c.chain.FireClose(c, c.attr)
		c.state.Store(int32(StateClosed))
		close(c.closed)
		err = c.raw.Close()
		c.metrics.ConnectionClosed()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
	return err
}
