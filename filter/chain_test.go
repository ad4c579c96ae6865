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

package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewire/tidewire/internal/attribute"
)

type recordingFilter struct {
	BaseFilter
	name    string
	order   *[]string
	onRead  func(ctx *Context) (NextAction, error)
}

func (f *recordingFilter) HandleRead(ctx *Context) (NextAction, error) {
	*f.order = append(*f.order, f.name+":read")
	if f.onRead != nil {
		return f.onRead(ctx)
	}
	return Invoke(), nil
}

func (f *recordingFilter) HandleWrite(ctx *Context) (NextAction, error) {
	*f.order = append(*f.order, f.name+":write")
	return Invoke(), nil
}

func (f *recordingFilter) HandleClose(ctx *Context) (NextAction, error) {
	*f.order = append(*f.order, f.name+":close")
	return Invoke(), nil
}

type fakeConn struct {
	holder  *attribute.Holder
	written []any
	closed  bool
}

func (c *fakeConn) Write(msg any) error {
	c.written = append(c.written, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) Attributes() *attribute.Holder { return c.holder }

func TestFireReadRunsForwardOrder(t *testing.T) {
	var order []string
	chain := NewChain(
		&recordingFilter{name: "a", order: &order},
		&recordingFilter{name: "b", order: &order},
		&recordingFilter{name: "c", order: &order},
	)
	conn := &fakeConn{holder: attribute.NewHolder(nil)}

	err := chain.FireRead(conn, conn.holder, "payload")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:read", "b:read", "c:read"}, order)
}

func TestFireWriteRunsReverseOrder(t *testing.T) {
	var order []string
	chain := NewChain(
		&recordingFilter{name: "a", order: &order},
		&recordingFilter{name: "b", order: &order},
		&recordingFilter{name: "c", order: &order},
	)
	conn := &fakeConn{holder: attribute.NewHolder(nil)}

	err := chain.FireWrite(conn, conn.holder, "payload")
	require.NoError(t, err)
	assert.Equal(t, []string{"c:write", "b:write", "a:write"}, order)
}

func TestActionStopHaltsChain(t *testing.T) {
	var order []string
	stopper := &recordingFilter{name: "gate", order: &order, onRead: func(*Context) (NextAction, error) {
		return Stop(), nil
	}}
	never := &recordingFilter{name: "never", order: &order}
	chain := NewChain(stopper, never)
	conn := &fakeConn{holder: attribute.NewHolder(nil)}

	err := chain.FireRead(conn, conn.holder, "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"gate:read"}, order)
}

func TestActionRerunReentersWithReplacementMessage(t *testing.T) {
	var order []string
	var seen []any
	splitter := &recordingFilter{name: "splitter", order: &order, onRead: func(ctx *Context) (NextAction, error) {
		seen = append(seen, ctx.Message)
		if ctx.Message == "first" {
			return Rerun("second", nil), nil
		}
		return Invoke(), nil
	}}
	tail := &recordingFilter{name: "tail", order: &order, onRead: func(ctx *Context) (NextAction, error) {
		seen = append(seen, ctx.Message)
		return Invoke(), nil
	}}
	chain := NewChain(splitter, tail)
	conn := &fakeConn{holder: attribute.NewHolder(nil)}

	err := chain.FireRead(conn, conn.holder, "first")
	require.NoError(t, err)
	assert.Equal(t, []any{"first", "second", "second"}, seen)
}

func TestActionSuspendStopsWithoutError(t *testing.T) {
	var order []string
	resumed := false
	parker := &recordingFilter{name: "parker", order: &order, onRead: func(*Context) (NextAction, error) {
		return Suspend(func() { resumed = true }), nil
	}}
	never := &recordingFilter{name: "never", order: &order}
	chain := NewChain(parker, never)
	conn := &fakeConn{holder: attribute.NewHolder(nil)}

	err := chain.FireRead(conn, conn.holder, "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"parker:read"}, order)
	assert.False(t, resumed, "Resume is the caller's responsibility, the chain never calls it itself")
}

func TestFireCloseVisitsEveryFilter(t *testing.T) {
	var order []string
	chain := NewChain(
		&recordingFilter{name: "a", order: &order},
		&recordingFilter{name: "b", order: &order},
	)
	conn := &fakeConn{holder: attribute.NewHolder(nil)}

	err := chain.FireClose(conn, conn.holder)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a:close", "b:close"}, order)
}
