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

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapGetPut(t *testing.T) {
	mm := NewMemoryManager()
	b := mm.Wrap([]byte("hello world"))
	assert.Equal(t, 11, b.Capacity())
	assert.Equal(t, 11, b.Remaining())

	out := make([]byte, 5)
	n := b.Get(out)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(out))
	assert.Equal(t, 6, b.Remaining())
}

func TestAllocatePut(t *testing.T) {
	mm := NewMemoryManager()
	b := mm.Allocate(4)
	n := b.Put([]byte("abcd"))
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, b.Position())

	// Put beyond capacity is truncated, never overruns.
	n = b.Put([]byte("e"))
	assert.Equal(t, 0, n)
}

func TestSliceIsIndependentView(t *testing.T) {
	mm := NewMemoryManager()
	b := mm.Wrap([]byte("abcdef"))
	b.SetPosition(2)

	s := b.Slice()
	assert.Equal(t, 4, s.Capacity())
	out := make([]byte, 4)
	s.Get(out)
	assert.Equal(t, "cdef", string(out))

	// original cursor is untouched by reading the slice
	assert.Equal(t, 2, b.Position())
}

// TestSplitConcatRoundTrip is the spec's buffer-split invariant: for any
// buffer B and split point p, concat(B[0,p), B[p,limit)) == B.
func TestSplitConcatRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("0123456789"), 50)
	mm := NewMemoryManager()

	for trial := 0; trial < 20; trial++ {
		p := rand.Intn(len(src))
		b := mm.Wrap(append([]byte(nil), src...))

		tail, err := b.Split(p)
		require.NoError(t, err)

		head := make([]byte, b.Remaining())
		b.Get(head)
		tailBytes := make([]byte, tail.Remaining())
		tail.Get(tailBytes)

		assert.Equal(t, src, append(head, tailBytes...))
	}
}

func TestSplitOutOfRange(t *testing.T) {
	mm := NewMemoryManager()
	b := mm.Wrap([]byte("abc"))
	_, err := b.Split(10)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestDuplicateIndependentCursors(t *testing.T) {
	mm := NewMemoryManager()
	b := mm.Wrap([]byte("abcdef"))
	dup := b.Duplicate()

	out := make([]byte, 3)
	dup.Get(out)
	assert.Equal(t, "abc", string(out))
	assert.Equal(t, 0, b.Position(), "duplicate reads must not move the original cursor")
}

func TestTrimAndShrink(t *testing.T) {
	mm := NewMemoryManager()
	b := mm.Wrap([]byte("abcdef"))
	b.SetPosition(2)
	b.Trim()
	assert.Equal(t, 2, b.Limit())

	b2 := mm.Wrap([]byte("abcdef"))
	b2.SetPosition(3)
	b2.Shrink()
	assert.Equal(t, 0, b2.Position())
	out := make([]byte, b2.Remaining())
	b2.Get(out)
	assert.Equal(t, "def", string(out))
}

func TestAppendBuffersIdentity(t *testing.T) {
	mm := NewMemoryManager()
	b := mm.Wrap([]byte("x"))
	assert.Same(t, b, AppendBuffers(nil, b))
	assert.Same(t, b, AppendBuffers(b, nil))
}

func TestAppendBuffersConcatenatesAcrossFragments(t *testing.T) {
	mm := NewMemoryManager()
	a := mm.Wrap([]byte("hello "))
	b := mm.Wrap([]byte("world"))
	c := AppendBuffers(a, b)

	assert.Equal(t, 11, c.Remaining())
	out := make([]byte, c.Remaining())
	n := c.Get(out)
	assert.Equal(t, 11, n)
	assert.Equal(t, "hello world", string(out))
}

func TestAppendBuffersPeekSingleFragmentIsZeroCopy(t *testing.T) {
	mm := NewMemoryManager()
	a := mm.Wrap([]byte("only"))
	c := AppendBuffers(a, nil)
	assert.Equal(t, "only", string(c.Peek()))
}

func TestAppendBuffersThenSplitAcrossBoundary(t *testing.T) {
	mm := NewMemoryManager()
	a := mm.Wrap([]byte("aaa"))
	b := mm.Wrap([]byte("bbb"))
	c := AppendBuffers(a, b)

	tail, err := c.Split(4) // boundary falls inside the second fragment
	require.NoError(t, err)

	head := make([]byte, c.Remaining())
	c.Get(head)
	assert.Equal(t, "aaab", string(head))

	tailBytes := make([]byte, tail.Remaining())
	tail.Get(tailBytes)
	assert.Equal(t, "bb", string(tailBytes))

	// Disposing both halves independently must not panic or corrupt the
	// pool: the straddling fragment was split into two real arena views.
	c.TryDispose()
	tail.TryDispose()
}

func TestCompositeShrinkDropsConsumedFragments(t *testing.T) {
	mm := NewMemoryManager()
	a := mm.Wrap([]byte("aaa"))
	b := mm.Wrap([]byte("bbb"))
	c := AppendBuffers(a, b)

	out := make([]byte, 4)
	c.Get(out) // consume "aaab", leaving "bb" split inside fragment b
	c.Shrink()

	assert.Equal(t, 0, c.Position())
	assert.Equal(t, 2, c.Remaining())
	rest := make([]byte, 2)
	c.Get(rest)
	assert.Equal(t, "bb", string(rest))
}
