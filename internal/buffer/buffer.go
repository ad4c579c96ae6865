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

// Package buffer implements the zero-copy-oriented Buffer abstraction the
// filter chain, HTTP codec and AJP codec all pass messages through.
//
// A Buffer is a byte region with mutable cursors (position, limit,
// capacity). Slicing, splitting and duplicating a Buffer never copies the
// backing storage; they create new views over the same arena with their
// own cursors. An arena is reference counted so that disposing the last
// outstanding view returns the storage to the owning MemoryManager.
package buffer

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	return errors.Errorf("buffer: "+format, args...)
}

// ErrInvalidRange is returned by Split/Slice when the requested bound is
// outside [position, limit].
var ErrInvalidRange = newError("invalid range")

// arena is the shared backing storage for one or more Buffer views.
type arena struct {
	buf     []byte
	refs    atomic.Int32
	manager *manager // nil for Wrap()'d buffers, which are never pooled
}

func (a *arena) retain() {
	a.refs.Add(1)
}

// release decrements the refcount and returns the storage to the manager
// once the last view has gone away. Returns true if this call actually
// freed the arena.
func (a *arena) release() bool {
	if a.refs.Add(-1) > 0 {
		return false
	}
	if a.manager != nil {
		a.manager.put(a.buf)
	}
	a.buf = nil
	return true
}

// Buffer is a byte region with position/limit/capacity cursors.
//
// Invariant: 0 <= position <= limit <= capacity. Ownership is exclusive to
// whoever holds the Buffer; passing it through a filter transfers
// ownership unless the sender calls Duplicate first.
type Buffer interface {
	// Position returns the current read/write cursor.
	Position() int
	// SetPosition moves the cursor; panics if outside [0, limit].
	SetPosition(p int)
	// Limit returns the exclusive upper bound of addressable bytes.
	Limit() int
	// SetLimit moves the limit; panics if outside [position, capacity].
	SetLimit(l int)
	// Capacity returns the total addressable size of this view.
	Capacity() int
	// Remaining returns Limit()-Position().
	Remaining() int
	// HasRemaining reports whether Remaining() > 0.
	HasRemaining() bool

	// Peek returns the unread region [position, limit) without copying
	// and without advancing position. Callers must treat it read-only.
	Peek() []byte
	// Get copies min(len(p), Remaining()) bytes into p, advances
	// position by that amount and returns the count copied.
	Get(p []byte) int
	// Put copies min(len(p), limit-position) bytes from p into the
	// buffer at position, advances position and returns the count
	// copied.
	Put(p []byte) int

	// Slice returns a new read-only-by-convention view over
	// [position, limit) with its own zero-based cursors, sharing the
	// same underlying arena.
	Slice() Buffer
	// Split returns the tail [at, limit) as a new Buffer with its own
	// zero-based cursors, while the receiver is truncated to retain
	// only [position, at). at is relative to the receiver's own
	// indexing and must be within [position, limit].
	Split(at int) (Buffer, error)
	// Duplicate returns a new Buffer with independent cursors
	// (initialized to the receiver's current position/limit/capacity)
	// sharing the same storage.
	Duplicate() Buffer

	// Trim sets limit = position, discarding any unread tail.
	Trim()
	// Shrink compacts the consumed prefix [0, position) out of the
	// view, resetting position to 0. Only valid for buffers this view
	// exclusively owns; composite buffers drop fully consumed
	// fragments instead of copying.
	Shrink()

	// TryDispose performs a best-effort release: decrements the arena
	// refcount, returning the backing storage to the MemoryManager once
	// the last view has been released. Returns whether this call
	// actually freed the arena.
	TryDispose() bool
}

// simple is the concrete non-composite Buffer implementation: one arena,
// one contiguous window into it.
type simple struct {
	a        *arena
	off      int // absolute offset into a.buf where this view's index 0 lives
	position int
	limit    int
	capacity int
	disposed bool
}

func newSimple(a *arena, off, position, limit, capacity int) *simple {
	a.retain()
	return &simple{a: a, off: off, position: position, limit: limit, capacity: capacity}
}

func (b *simple) checkLive() {
	if debugEnabled && b.disposed {
		panic("buffer: use after dispose")
	}
}

func (b *simple) Position() int { b.checkLive(); return b.position }

func (b *simple) SetPosition(p int) {
	b.checkLive()
	if p < 0 || p > b.limit {
		panic(ErrInvalidRange)
	}
	b.position = p
}

func (b *simple) Limit() int { b.checkLive(); return b.limit }

func (b *simple) SetLimit(l int) {
	b.checkLive()
	if l < b.position || l > b.capacity {
		panic(ErrInvalidRange)
	}
	b.limit = l
}

func (b *simple) Capacity() int { b.checkLive(); return b.capacity }

func (b *simple) Remaining() int { b.checkLive(); return b.limit - b.position }

func (b *simple) HasRemaining() bool { return b.Remaining() > 0 }

func (b *simple) Peek() []byte {
	b.checkLive()
	return b.a.buf[b.off+b.position : b.off+b.limit]
}

func (b *simple) Get(p []byte) int {
	b.checkLive()
	n := copy(p, b.a.buf[b.off+b.position:b.off+b.limit])
	b.position += n
	return n
}

func (b *simple) Put(p []byte) int {
	b.checkLive()
	n := copy(b.a.buf[b.off+b.position:b.off+b.capacity], p)
	b.position += n
	return n
}

func (b *simple) Slice() Buffer {
	b.checkLive()
	return newSimple(b.a, b.off+b.position, 0, b.limit-b.position, b.limit-b.position)
}

func (b *simple) Split(at int) (Buffer, error) {
	b.checkLive()
	if at < b.position || at > b.limit {
		return nil, ErrInvalidRange
	}
	tail := newSimple(b.a, b.off+at, 0, b.limit-at, b.capacity-at)
	b.limit = at
	b.capacity = at
	return tail, nil
}

func (b *simple) Duplicate() Buffer {
	b.checkLive()
	return newSimple(b.a, b.off, b.position, b.limit, b.capacity)
}

func (b *simple) Trim() {
	b.checkLive()
	b.limit = b.position
}

func (b *simple) Shrink() {
	b.checkLive()
	if b.position == 0 {
		return
	}
	b.off += b.position
	b.limit -= b.position
	b.capacity -= b.position
	b.position = 0
}

func (b *simple) TryDispose() bool {
	b.checkLive()
	b.disposed = true
	return b.a.release()
}

const debugEnabled = debugBuild
