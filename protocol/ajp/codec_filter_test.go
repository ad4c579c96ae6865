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

package ajp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewire/tidewire/filter"
	"github.com/tidewire/tidewire/internal/attribute"
	"github.com/tidewire/tidewire/internal/buffer"
	"github.com/tidewire/tidewire/protocol/http1"
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

type staticRegistry struct{ body string }

func (r staticRegistry) Resolve(string) (http1.HttpHandler, bool) {
	return handlerFunc(func(*http1.HttpRequestPacket, []byte) (*http1.HttpResponsePacket, []byte) {
		return http1.NewResponse(200, "OK"), []byte(r.body)
	}), true
}

type handlerFunc func(req *http1.HttpRequestPacket, body []byte) (*http1.HttpResponsePacket, []byte)

func (h handlerFunc) Service(req *http1.HttpRequestPacket, body []byte) (*http1.HttpResponsePacket, []byte) {
	return h(req, body)
}

func TestAJPCodecFilterRespondsWithEncodedFrames(t *testing.T) {
	raw := buildForwardRequest(t, []KeyValue{{Name: "Host", Value: "example.com"}}, nil)

	mm := buffer.NewMemoryManager()
	f := NewCodecFilter(staticRegistry{body: "ok"}, nil)
	conn := &fakeConn{}
	ctx := &filter.Context{Direction: filter.DirRead, Conn: conn, Holder: attribute.NewHolder(nil), Message: mm.Wrap(raw)}

	_, err := f.HandleRead(ctx)
	require.NoError(t, err)

	// No Content-Length on the FORWARD_REQUEST means the request body is
	// immediately complete: headers, one body frame, END_RESPONSE.
	require.Len(t, conn.written, 3)
	assert.Equal(t, byte(PacketSendHeaders), conn.written[0][4])
	assert.Equal(t, byte(PacketSendBodyChunk), conn.written[1][4])
	assert.Equal(t, byte(PacketEndResponse), conn.written[2][4])
}
