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

import "github.com/tidewire/tidewire/internal/attribute"

// Chain holds an ordered list of Filters and drives them forward on
// reads and in reverse on writes, matching the mirrored encode/decode
// placement real protocol stacks (e.g. a gzip filter) rely on.
type Chain struct {
	filters []Filter
}

// NewChain returns a Chain running filters in the given order for reads;
// writes traverse the same slice back to front.
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int { return len(c.filters) }

// FireRead drives msg through the chain front to back starting at index
// 0, stopping at ActionStop, re-entering at ActionRerun, or returning
// once every filter has seen the message.
func (c *Chain) FireRead(conn Connection, holder *attribute.Holder, msg any) error {
	return c.run(conn, holder, DirRead, msg, 0, 1)
}

// FireWrite drives msg through the chain back to front starting at the
// last index, mirroring FireRead.
func (c *Chain) FireWrite(conn Connection, holder *attribute.Holder, msg any) error {
	return c.run(conn, holder, DirWrite, msg, len(c.filters)-1, -1)
}

// FireEvent broadcasts an out-of-band event (e.g. a timeout) to every
// filter front to back; a filter returning ActionStop swallows it from
// the rest of the chain.
func (c *Chain) FireEvent(conn Connection, holder *attribute.Holder, msg any) error {
	return c.run(conn, holder, DirEvent, msg, 0, 1)
}

// FireClose notifies every filter, front to back, that the connection is
// closing so each can release resources it attached via the holder.
func (c *Chain) FireClose(conn Connection, holder *attribute.Holder) error {
	return c.run(conn, holder, DirClose, nil, 0, 1)
}

func (c *Chain) run(conn Connection, holder *attribute.Holder, dir Direction, msg any, start, step int) error {
	ctx := &Context{Direction: dir, Conn: conn, chain: c}
	idx := start
	for idx >= 0 && idx < len(c.filters) {
		ctx.index = idx
		ctx.Message = msg
		ctx.Holder = holder

		action, err := c.dispatch(c.filters[idx], dir, ctx)
		if err != nil {
			return newError("filter %d: %s", idx, err)
		}

		switch action.Kind {
		case ActionStop:
			return nil
		case ActionSuspend:
			return nil
		case ActionRerun:
			msg = action.Message
			continue
		default: // ActionInvoke
			msg = ctx.Message
			idx += step
		}
	}
	return nil
}

func (c *Chain) dispatch(f Filter, dir Direction, ctx *Context) (NextAction, error) {
	switch dir {
	case DirRead:
		return f.HandleRead(ctx)
	case DirWrite:
		return f.HandleWrite(ctx)
	case DirEvent:
		return f.HandleEvent(ctx)
	case DirClose:
		return f.HandleClose(ctx)
	default:
		return Invoke(), nil
	}
}
