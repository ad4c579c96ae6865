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

// fragment pins one contiguous source Buffer alongside the slice of its
// remaining bytes a composite logically concatenates. buf is retained
// purely for disposal bookkeeping; reads never touch its cursors.
type fragment struct {
	buf   Buffer
	bytes []byte
}

// composite is the Buffer produced by AppendBuffers. It concatenates N
// fragments without copying their payloads; only the accounting (cursor
// math and, when a read spans a fragment boundary, the returned slice)
// costs anything.
type composite struct {
	frags    []fragment
	total    int
	position int
	limit    int
	disposed bool
}

func newComposite(frags []fragment) Buffer {
	total := 0
	for _, f := range frags {
		total += len(f.bytes)
	}
	return &composite{frags: frags, total: total, limit: total}
}

// flatten returns buf's remaining bytes as a fragment list, taking over
// buf's composite fragments directly (avoiding composites of composites)
// or wrapping a single non-composite Buffer as one fragment.
func flatten(buf Buffer) []fragment {
	if c, ok := buf.(*composite); ok {
		return c.window(c.position, c.limit)
	}
	return []fragment{{buf: buf, bytes: buf.Peek()}}
}

// window extracts the sub-range [lo, hi) of the concatenated fragment
// byte streams, expressed in the same absolute coordinate space as the
// fragments were built in (i.e. position/limit before any further
// slicing). The returned fragments alias buf, never copy bytes, and
// never re-slice what they point at beyond trimming the head/tail.
func window(frags []fragment, lo, hi int) []fragment {
	if lo >= hi {
		return nil
	}
	out := make([]fragment, 0, len(frags))
	cursor := 0
	for _, f := range frags {
		start, end := cursor, cursor+len(f.bytes)
		cursor = end
		if end <= lo || start >= hi {
			continue
		}
		b := f.bytes
		from, to := 0, len(b)
		if start < lo {
			from = lo - start
		}
		if end > hi {
			to = hi - start
		}
		out = append(out, fragment{buf: f.buf, bytes: b[from:to]})
	}
	return out
}

func (c *composite) window(lo, hi int) []fragment {
	return window(c.frags, lo, hi)
}

// AppendBuffers concatenates a and b into a single logical Buffer without
// copying either's payload. A nil operand is the identity: AppendBuffers
// preserves the other buffer unchanged.
func AppendBuffers(a, b Buffer) Buffer {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	fa, fb := flatten(a), flatten(b)
	combined := make([]fragment, 0, len(fa)+len(fb))
	combined = append(combined, fa...)
	combined = append(combined, fb...)
	return newComposite(combined)
}

func (c *composite) checkLive() {
	if debugEnabled && c.disposed {
		panic("buffer: use after dispose")
	}
}

func (c *composite) Position() int { c.checkLive(); return c.position }

func (c *composite) SetPosition(p int) {
	c.checkLive()
	if p < 0 || p > c.limit {
		panic(ErrInvalidRange)
	}
	c.position = p
}

func (c *composite) Limit() int { c.checkLive(); return c.limit }

func (c *composite) SetLimit(l int) {
	c.checkLive()
	if l < c.position || l > c.total {
		panic(ErrInvalidRange)
	}
	c.limit = l
}

func (c *composite) Capacity() int { c.checkLive(); return c.total }

func (c *composite) Remaining() int { c.checkLive(); return c.limit - c.position }

func (c *composite) HasRemaining() bool { return c.Remaining() > 0 }

// Peek returns the unread window [position, limit). When that window
// falls entirely within a single fragment it is returned without
// copying; a window spanning a fragment boundary is necessarily
// discontiguous in the backing storage, so it is copied into a freshly
// allocated slice instead.
func (c *composite) Peek() []byte {
	c.checkLive()
	frags := c.window(c.position, c.limit)
	if len(frags) == 0 {
		return nil
	}
	if len(frags) == 1 {
		return frags[0].bytes
	}
	out := make([]byte, 0, c.limit-c.position)
	for _, f := range frags {
		out = append(out, f.bytes...)
	}
	return out
}

func (c *composite) Get(p []byte) int {
	c.checkLive()
	frags := c.window(c.position, c.limit)
	n := 0
	for _, f := range frags {
		if n == len(p) {
			break
		}
		m := copy(p[n:], f.bytes)
		n += m
	}
	c.position += n
	return n
}

// Put is unsupported on composite buffers: they exist to chain already
// written fragments for reading, never to accumulate new writes.
func (c *composite) Put([]byte) int { return 0 }

// Slice returns an independently disposable view over [position, limit).
// Every fragment the window touches is duplicated (retaining its arena)
// rather than re-shared, so disposing the slice and disposing c are both
// safe regardless of order.
func (c *composite) Slice() Buffer {
	c.checkLive()
	frags := c.window(c.position, c.limit)
	out := make([]fragment, len(frags))
	for i, f := range frags {
		out[i] = fragment{buf: f.buf.Duplicate(), bytes: f.bytes}
	}
	return newComposite(out)
}

// Split returns the tail [at, limit) as an independent Buffer while the
// receiver retains [position, at). A fragment straddling the boundary is
// split for real (via its own Buffer.Split), so the two halves get
// independent arena references instead of aliasing one Buffer from two
// owners — aliasing would double-release that fragment's storage once
// both sides were eventually disposed.
func (c *composite) Split(at int) (Buffer, error) {
	c.checkLive()
	if at < c.position || at > c.limit {
		return nil, ErrInvalidRange
	}
	head, tail, err := splitFragmentsAt(c.frags, at)
	if err != nil {
		return nil, err
	}
	c.frags = head
	c.total = at
	c.limit = at
	return newComposite(tail), nil
}

// splitFragmentsAt partitions frags (addressed in their own absolute
// 0-based coordinate space) into everything before at and everything
// from at onward, splitting the one fragment the boundary falls inside.
func splitFragmentsAt(frags []fragment, at int) (head, tail []fragment, err error) {
	cursor := 0
	for i, f := range frags {
		start, end := cursor, cursor+len(f.bytes)
		cursor = end
		switch {
		case end <= at:
			head = append(head, f)
		case start >= at:
			tail = append(tail, frags[i:]...)
			return head, tail, nil
		default:
			rel := at - start
			t, splitErr := f.buf.Split(f.buf.Position() + rel)
			if splitErr != nil {
				return nil, nil, splitErr
			}
			head = append(head, fragment{buf: f.buf, bytes: f.bytes[:rel]})
			tail = append(tail, fragment{buf: t, bytes: t.Peek()})
			tail = append(tail, frags[i+1:]...)
			return head, tail, nil
		}
	}
	return head, tail, nil
}

func (c *composite) Duplicate() Buffer {
	c.checkLive()
	out := make([]fragment, len(c.frags))
	for i, f := range c.frags {
		out[i] = fragment{buf: f.buf.Duplicate(), bytes: f.bytes}
	}
	return &composite{frags: out, total: c.total, position: c.position, limit: c.limit}
}

func (c *composite) Trim() {
	c.checkLive()
	c.limit = c.position
}

// Shrink drops fragments fully consumed by position and re-bases the
// remaining ones to start at zero. The fragment the cursor currently sits
// inside is kept (not disposed) with its bytes window trimmed, same
// underlying Buffer as before — it has exactly one owner (c) both before
// and after, so no duplication is needed here.
func (c *composite) Shrink() {
	c.checkLive()
	if c.position == 0 {
		return
	}
	cursor := 0
	kept := make([]fragment, 0, len(c.frags))
	for _, f := range c.frags {
		start, end := cursor, cursor+len(f.bytes)
		cursor = end
		if end <= c.position {
			f.buf.TryDispose()
			continue
		}
		if start < c.position {
			f.bytes = f.bytes[c.position-start:]
		}
		kept = append(kept, f)
	}
	c.frags = kept
	c.total = c.limit - c.position
	c.position = 0
	c.limit = c.total
}

func (c *composite) TryDispose() bool {
	c.checkLive()
	c.disposed = true
	freed := true
	for _, f := range c.frags {
		if !f.buf.TryDispose() {
			freed = false
		}
	}
	return freed
}
