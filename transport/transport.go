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

package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/tidewire/tidewire/common"
	"github.com/tidewire/tidewire/filter"
	"github.com/tidewire/tidewire/internal/buffer"
)

// Options configures a Transport. Zero values fall back to sane
// defaults mirroring spec.md's option set.
type Options struct {
	// NewChain builds a fresh, per-connection filter chain. Required:
	// filters frequently hold per-connection decode state (e.g. the
	// HTTP codec's parser state machine) so chains are never shared.
	NewChain func() *filter.Chain

	MemoryManager buffer.MemoryManager
	Metrics       Metrics

	ReadBufferSize   int
	WriteQueueDepth  int
	ReactorShards    int
	ReactorQueueSize int

	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (o *Options) setDefaults() {
	if o.MemoryManager == nil {
		o.MemoryManager = buffer.NewMemoryManager()
	}
	if o.Metrics == nil {
		o.Metrics = NopMetrics{}
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = common.ReadWriteBlockSize
	}
	if o.WriteQueueDepth <= 0 {
		o.WriteQueueDepth = 64
	}
	if o.ReactorShards <= 0 {
		o.ReactorShards = common.Concurrency()
	}
	if o.ReactorQueueSize <= 0 {
		o.ReactorQueueSize = 256
	}
}

// Transport owns one or more listeners and every Connection accepted
// from them, plus the shared reactor pool those connections submit
// filter chain work to.
type Transport struct {
	opt     Options
	reactor *reactor

	mu        sync.Mutex
	listeners []net.Listener
	conns     map[*Connection]struct{}
	draining  bool

	wg sync.WaitGroup
}

// New returns a Transport ready to Serve listeners.
func New(opt Options) *Transport {
	opt.setDefaults()
	return &Transport{
		opt:     opt,
		reactor: newReactor(opt.ReactorShards, opt.ReactorQueueSize),
		conns:   make(map[*Connection]struct{}),
	}
}

// Serve accepts connections from ln until it errors or the Transport is
// shut down, blocking the calling goroutine. Callers typically invoke
// this once per listener in its own goroutine.
func (t *Transport) Serve(ln net.Listener) error {
	t.mu.Lock()
	t.listeners = append(t.listeners, ln)
	t.mu.Unlock()

	for {
		raw, err := ln.Accept()
		if err != nil {
			t.mu.Lock()
			draining := t.draining
			t.mu.Unlock()
			if draining {
				return nil
			}
			return err
		}
		t.accept(raw)
	}
}

func (t *Transport) accept(raw net.Conn) {
	t.mu.Lock()
	if t.draining {
		t.mu.Unlock()
		_ = raw.Close()
		return
	}

	conn := newConnection(raw, connOptions{
		mm:           t.opt.MemoryManager,
		reactor:      t.reactor,
		metrics:      t.opt.Metrics,
		newChain:     t.opt.NewChain,
		readBufSize:  t.opt.ReadBufferSize,
		writeQueue:   t.opt.WriteQueueDepth,
		idleTimeout:  t.opt.IdleTimeout,
		readTimeout:  t.opt.ReadTimeout,
		writeTimeout: t.opt.WriteTimeout,
		onClose:      t.forget,
	})
	t.conns[conn] = struct{}{}
	t.mu.Unlock()

	t.opt.Metrics.ConnectionOpened()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		conn.serve()
	}()
}

func (t *Transport) forget(c *Connection) {
	t.mu.Lock()
	delete(t.conns, c)
	t.mu.Unlock()
}

// Shutdown stops accepting new connections, broadcasts EventShutdown to
// every live connection's filter chain, then waits for connections to
// finish draining or for ctx to expire, whichever comes first. Listener
// and forced-close errors from every connection are aggregated instead
// of only the first one surfacing.
func (t *Transport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.draining = true
	listeners := append([]net.Listener(nil), t.listeners...)
	conns := make([]*Connection, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	var result *multierror.Error
	for _, ln := range listeners {
		if err := ln.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for _, c := range conns {
		c.chain.FireEvent(c, c.attr, EventShutdown{})
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		for _, c := range conns {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		result = multierror.Append(result, ctx.Err())
	}

	t.reactor.Close()
	return result.ErrorOrNil()
}

// ActiveConns returns the number of connections currently open.
func (t *Transport) ActiveConns() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}
