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

// Package attribute implements index-addressed scratch storage attached
// to connections and filter chain contexts. Slots are identified by a
// small integer id handed out once per name by a process-wide Builder,
// so lookups after registration never touch a map.
package attribute

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Attribute identifies one named, typed slot. Holders never see anything
// but the Index; Name exists for diagnostics (Holder.Names()).
type Attribute struct {
	Index int
	Name  string
}

// Builder assigns monotonic ids to attribute names. One process-wide
// Builder is expected (see DefaultBuilder), but tests may create their
// own to avoid cross-test id collisions.
//
// Registration takes a lock; looking an already-registered name up by
// its cached Attribute value is lock-free, matching the "global
// singleton with interior synchronization on registration" design note.
type Builder struct {
	mu    sync.Mutex
	byKey map[uint64]*Attribute
	names []string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byKey: make(map[uint64]*Attribute)}
}

// DefaultBuilder is the process-wide Builder most code should use so
// attribute ids are comparable across packages that don't share a
// Builder reference explicitly.
var DefaultBuilder = NewBuilder()

// CreateAttribute registers name if it hasn't been seen before and
// returns its Attribute. Concurrent callers registering the same name
// race on the lock but always converge on one Attribute value.
func (b *Builder) CreateAttribute(name string) *Attribute {
	key := xxhash.Sum64String(name)

	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.byKey[key]; ok {
		return a
	}
	a := &Attribute{Index: len(b.names), Name: name}
	b.names = append(b.names, name)
	b.byKey[key] = a
	return a
}

// Lookup returns the Attribute registered for name, if any, without
// registering it.
func (b *Builder) Lookup(name string) (*Attribute, bool) {
	key := xxhash.Sum64String(name)
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.byKey[key]
	return a, ok
}

// NameOf resolves an id back to the name it was registered under.
func (b *Builder) NameOf(index int) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.names) {
		return "", false
	}
	return b.names[index], true
}

// Holder is a dense, index-addressed slot array. Not safe for concurrent
// use: per spec.md mutation is expected only from the connection's
// owning reactor goroutine.
type Holder struct {
	builder *Builder
	slots   []any
}

// NewHolder returns a Holder backed by builder. Passing nil uses
// DefaultBuilder.
func NewHolder(builder *Builder) *Holder {
	if builder == nil {
		builder = DefaultBuilder
	}
	return &Holder{builder: builder}
}

// Get returns the value at i, or nil if i is out of range or unset.
func (h *Holder) Get(i int) any {
	if i < 0 || i >= len(h.slots) {
		return nil
	}
	return h.slots[i]
}

// Set stores v at i, growing the slot array as needed.
func (h *Holder) Set(i int, v any) {
	if i >= len(h.slots) {
		grown := make([]any, i+1)
		copy(grown, h.slots)
		h.slots = grown
	}
	h.slots[i] = v
}

// GetByName registers name on demand and returns its current value.
func (h *Holder) GetByName(name string) any {
	a := h.builder.CreateAttribute(name)
	return h.Get(a.Index)
}

// SetByName registers name on demand and stores v in its slot.
func (h *Holder) SetByName(name string, v any) {
	a := h.builder.CreateAttribute(name)
	h.Set(a.Index, v)
}

// Remove writes nil at i without shrinking the backing array.
func (h *Holder) Remove(i int) {
	if i >= 0 && i < len(h.slots) {
		h.slots[i] = nil
	}
}

// Clear truncates the Holder to zero length.
func (h *Holder) Clear() {
	h.slots = h.slots[:0]
}

// Names resolves every populated slot's id back to a name via the
// Builder, skipping unset slots.
func (h *Holder) Names() []string {
	var names []string
	for i, v := range h.slots {
		if v == nil {
			continue
		}
		if name, ok := h.builder.NameOf(i); ok {
			names = append(names, name)
		}
	}
	return names
}
