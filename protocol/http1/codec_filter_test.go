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

package http1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewire/tidewire/filter"
	"github.com/tidewire/tidewire/internal/attribute"
	"github.com/tidewire/tidewire/internal/buffer"
)

type fakeConn struct {
	written [][]byte
	closed  bool
}

func (f *fakeConn) Write(msg any) error {
	switch v := msg.(type) {
	case []byte:
		f.written = append(f.written, v)
	case buffer.Buffer:
		f.written = append(f.written, v.Peek())
	}
	return nil
}
func (f *fakeConn) Close() error                  { f.closed = true; return nil }
func (f *fakeConn) Attributes() *attribute.Holder { return attribute.NewHolder(nil) }

type echoRegistry struct{}

func (echoRegistry) Resolve(uri string) (HttpHandler, bool) {
	return handlerFunc(func(req *HttpRequestPacket, body []byte) (*HttpResponsePacket, []byte) {
		resp := NewResponse(200, "OK")
		resp.Header.Set("Content-Type", "text/plain")
		return resp, body
	}), true
}

type handlerFunc func(req *HttpRequestPacket, body []byte) (*HttpResponsePacket, []byte)

func (h handlerFunc) Service(req *HttpRequestPacket, body []byte) (*HttpResponsePacket, []byte) {
	return h(req, body)
}

type emptyRegistry struct{}

func (emptyRegistry) Resolve(string) (HttpHandler, bool) { return nil, false }

func TestCodecFilterDispatchesOnRequestComplete(t *testing.T) {
	mm := buffer.NewMemoryManager()
	f := NewCodecFilter(DefaultLimits(), echoRegistry{}, nil)
	conn := &fakeConn{}
	holder := attribute.NewHolder(nil)

	raw := "POST /echo HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello"
	ctx := &filter.Context{Direction: filter.DirRead, Conn: conn, Holder: holder, Message: mm.Wrap([]byte(raw))}

	_, err := f.HandleRead(ctx)
	require.NoError(t, err)
	require.Len(t, conn.written, 1)
	assert.Contains(t, string(conn.written[0]), "HTTP/1.1 200 OK")
	assert.Contains(t, string(conn.written[0]), "hello")
}

func TestCodecFilterSendsInterimContinueBeforeBody(t *testing.T) {
	mm := buffer.NewMemoryManager()
	f := NewCodecFilter(DefaultLimits(), echoRegistry{}, nil)
	conn := &fakeConn{}
	holder := attribute.NewHolder(nil)

	raw := "POST /echo HTTP/1.1\r\nHost: x\r\nExpect: 100-continue\r\nContent-Length: 5\r\n\r\nhello"
	ctx := &filter.Context{Direction: filter.DirRead, Conn: conn, Holder: holder, Message: mm.Wrap([]byte(raw))}

	_, err := f.HandleRead(ctx)
	require.NoError(t, err)
	require.Len(t, conn.written, 2)
	assert.Equal(t, "HTTP/1.1 100 Continue\r\n\r\n", string(conn.written[0]))
	assert.Contains(t, string(conn.written[1]), "HTTP/1.1 200 OK")
}

func TestCodecFilterSkipsContinueWhenNoBodyDeclared(t *testing.T) {
	mm := buffer.NewMemoryManager()
	f := NewCodecFilter(DefaultLimits(), echoRegistry{}, nil)
	conn := &fakeConn{}
	holder := attribute.NewHolder(nil)

	raw := "GET /echo HTTP/1.1\r\nHost: x\r\nExpect: 100-continue\r\n\r\n"
	ctx := &filter.Context{Direction: filter.DirRead, Conn: conn, Holder: holder, Message: mm.Wrap([]byte(raw))}

	_, err := f.HandleRead(ctx)
	require.NoError(t, err)
	require.Len(t, conn.written, 1)
	assert.Contains(t, string(conn.written[0]), "HTTP/1.1 200 OK")
}

// TestCodecFilterSkipsUnwantedBodyAndStaysAlive feeds the declared body
// in a read separate from the headers (as a real connection would),
// since SkipRemainder only has anything to do with bytes that haven't
// arrived in the decoder's pending buffer yet.
func TestCodecFilterSkipsUnwantedBodyAndStaysAlive(t *testing.T) {
	mm := buffer.NewMemoryManager()
	f := NewCodecFilter(DefaultLimits(), emptyRegistry{}, nil)
	conn := &fakeConn{}
	holder := attribute.NewHolder(nil)

	headers := "POST /missing HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\n"
	ctx := &filter.Context{Direction: filter.DirRead, Conn: conn, Holder: holder, Message: mm.Wrap([]byte(headers))}
	_, err := f.HandleRead(ctx)
	require.NoError(t, err)
	require.Len(t, conn.written, 1)
	assert.Contains(t, string(conn.written[0]), "HTTP/1.1 404 Not Found")
	assert.False(t, conn.closed)

	// The body arrives after the response already went out; the decoder
	// is in discard mode, so it produces nothing and no second response
	// is written for it.
	ctx2 := &filter.Context{Direction: filter.DirRead, Conn: conn, Holder: holder, Message: mm.Wrap([]byte("hello"))}
	_, err = f.HandleRead(ctx2)
	require.NoError(t, err)
	assert.Len(t, conn.written, 1)

	// The connection is still usable for the next pipelined request.
	ctx3 := &filter.Context{Direction: filter.DirRead, Conn: conn, Holder: holder, Message: mm.Wrap([]byte("GET /missing HTTP/1.1\r\nHost: x\r\n\r\n"))}
	_, err = f.HandleRead(ctx3)
	require.NoError(t, err)
	require.Len(t, conn.written, 2)
	assert.Contains(t, string(conn.written[1]), "HTTP/1.1 404 Not Found")
	assert.False(t, conn.closed)
}

func TestCodecFilterClosesOversizedUnwantedBody(t *testing.T) {
	mm := buffer.NewMemoryManager()
	limits := DefaultLimits()
	limits.MaxPayloadRemainderToSkip = 2
	f := NewCodecFilter(limits, emptyRegistry{}, nil)
	conn := &fakeConn{}
	holder := attribute.NewHolder(nil)

	headers := "POST /missing HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\n"
	ctx := &filter.Context{Direction: filter.DirRead, Conn: conn, Holder: holder, Message: mm.Wrap([]byte(headers))}

	_, err := f.HandleRead(ctx)
	require.NoError(t, err)
	require.Len(t, conn.written, 1)
	assert.Contains(t, string(conn.written[0]), "HTTP/1.1 404 Not Found")
	assert.Contains(t, string(conn.written[0]), "Connection: close")
	assert.True(t, conn.closed)
}

func TestCodecFilterClosesOnConnectionClose(t *testing.T) {
	mm := buffer.NewMemoryManager()
	f := NewCodecFilter(DefaultLimits(), echoRegistry{}, nil)
	conn := &fakeConn{}
	holder := attribute.NewHolder(nil)

	raw := "GET / HTTP/1.0\r\nConnection: close\r\n\r\n"
	ctx := &filter.Context{Direction: filter.DirRead, Conn: conn, Holder: holder, Message: mm.Wrap([]byte(raw))}

	_, err := f.HandleRead(ctx)
	require.NoError(t, err)
	assert.True(t, conn.closed)
}
