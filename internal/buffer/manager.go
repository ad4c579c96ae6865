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

package buffer

import "github.com/valyala/bytebufferpool"

// MemoryManager is the factory and pool Buffers are allocated from and
// recycled to.
type MemoryManager interface {
	// Allocate returns a new exclusively-owned Buffer of size n. It may
	// be served from the pool or from the heap.
	Allocate(n int) Buffer
	// Wrap adapts an existing []byte into a Buffer without copying. The
	// returned Buffer is never pooled: disposing it drops the
	// reference but does not recycle p, since the manager does not own
	// it.
	Wrap(p []byte) Buffer
}

// manager pools its backing arrays through bytebufferpool, which buckets
// by size class but lets previously-oversized buffers shrink back over
// time instead of pinning peak usage forever.
type manager struct {
	pool *bytebufferpool.Pool
}

// NewMemoryManager returns a pooled MemoryManager.
func NewMemoryManager() MemoryManager {
	return &manager{pool: new(bytebufferpool.Pool)}
}

func (m *manager) Allocate(n int) Buffer {
	bb := m.pool.Get()
	if cap(bb.B) < n {
		bb.B = make([]byte, n)
	} else {
		bb.B = bb.B[:n]
	}
	a := &arena{buf: bb.B, manager: m}
	return newSimple(a, 0, 0, n, n)
}

func (m *manager) Wrap(p []byte) Buffer {
	a := &arena{buf: p} // manager left nil: TryDispose never recycles p
	return newSimple(a, 0, 0, len(p), len(p))
}

// put returns buf to the pool via a scratch bytebufferpool.ByteBuffer.
func (m *manager) put(buf []byte) {
	m.pool.Put(&bytebufferpool.ByteBuffer{B: buf[:0]})
}
