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

// Package filter implements the bidirectional filter chain messages flow
// through between a connection's transport and its protocol codec.
// Filters are small, composable and ordered: reads run the chain
// forward, writes run it in reverse, so a filter that decodes on read
// (e.g. gunzip) encodes the mirror direction on write (gzip) at the same
// position in the chain.
package filter

import (
	"github.com/pkg/errors"

	"github.com/tidewire/tidewire/internal/attribute"
	"github.com/tidewire/tidewire/internal/buffer"
)

func newError(format string, args ...any) error {
	return errors.Errorf("filter: "+format, args...)
}

// Direction identifies which way a message is travelling through the
// chain.
type Direction int

const (
	DirRead Direction = iota
	DirWrite
	DirEvent
	DirClose
)

func (d Direction) String() string {
	switch d {
	case DirRead:
		return "read"
	case DirWrite:
		return "write"
	case DirEvent:
		return "event"
	case DirClose:
		return "close"
	default:
		return "unknown"
	}
}

// ActionKind tags the variants of NextAction. Using a tagged variant
// instead of a type hierarchy keeps the engine's dispatch a single
// switch instead of a chain of type assertions.
type ActionKind int

const (
	// ActionInvoke proceeds to the next filter in the chain.
	ActionInvoke ActionKind = iota
	// ActionStop halts processing of this message; no further filter
	// sees it in this direction.
	ActionStop
	// ActionSuspend parks the chain until its Resume func is called, e.g.
	// because a filter needs more bytes than are currently available.
	ActionSuspend
	// ActionRerun re-enters the chain from the current filter with a
	// replacement message, used when a filter produces more than one
	// logical message from one input (pipelined requests in one read).
	ActionRerun
)

// NextAction tells the FilterChain engine what to do after a Filter's
// handler returns.
type NextAction struct {
	Kind    ActionKind
	Message any      // replacement message, used by ActionRerun
	Remainder buffer.Buffer // unconsumed bytes set by Rerun; Chain neither stores nor re-feeds them
	Resume  func()   // invoked by whatever un-suspends the chain, used by ActionSuspend
}

// Invoke continues the chain unmodified.
func Invoke() NextAction { return NextAction{Kind: ActionInvoke} }

// Stop halts the chain for this message.
func Stop() NextAction { return NextAction{Kind: ActionStop} }

// Suspend parks the chain until resume is called.
func Suspend(resume func()) NextAction {
	return NextAction{Kind: ActionSuspend, Resume: resume}
}

// Rerun re-enters the chain at the current position with message.
// remainder is only recorded on the returned NextAction: the chain does
// not keep it and does not deliver it with the next read.
func Rerun(message any, remainder buffer.Buffer) NextAction {
	return NextAction{Kind: ActionRerun, Message: message, Remainder: remainder}
}

// Context carries per-invocation state through one pass of the chain:
// the message being processed, which direction it is travelling, the
// connection it belongs to and that connection's attribute holder.
type Context struct {
	Direction Direction
	Message   any
	Holder    *attribute.Holder
	Conn      Connection

	chain *Chain
	index int
}

// StopChain is a convenience equivalent to returning Stop() from a
// handler, usable from code that doesn't have a NextAction in scope.
func (c *Context) StopChain() NextAction { return Stop() }

// Connection is the minimal surface a Filter needs from its owning
// transport connection: enough to write a response or close without
// filter depending on the transport package (which would be a cycle,
// since transport builds the chain that runs filters).
type Connection interface {
	Write(msg any) error
	Close() error
	Attributes() *attribute.Holder
}

// Filter is the unit of protocol or cross-cutting logic composed into a
// Chain. Implementations normally embed BaseFilter and override only the
// handlers they care about.
type Filter interface {
	HandleRead(ctx *Context) (NextAction, error)
	HandleWrite(ctx *Context) (NextAction, error)
	HandleConnect(ctx *Context) (NextAction, error)
	HandleClose(ctx *Context) (NextAction, error)
	HandleEvent(ctx *Context) (NextAction, error)
}

// BaseFilter implements Filter with pass-through no-ops so concrete
// filters only need to override the handlers relevant to them.
type BaseFilter struct{}

func (BaseFilter) HandleRead(*Context) (NextAction, error)    { return Invoke(), nil }
func (BaseFilter) HandleWrite(*Context) (NextAction, error)   { return Invoke(), nil }
func (BaseFilter) HandleConnect(*Context) (NextAction, error) { return Invoke(), nil }
func (BaseFilter) HandleClose(*Context) (NextAction, error)   { return Invoke(), nil }
func (BaseFilter) HandleEvent(*Context) (NextAction, error)   { return Invoke(), nil }

var _ Filter = BaseFilter{}
