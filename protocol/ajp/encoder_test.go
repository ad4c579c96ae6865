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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewire/tidewire/internal/buffer"
	"github.com/tidewire/tidewire/protocol/http1"
)

func TestEncodeHeadersFrameLayout(t *testing.T) {
	resp := http1.NewResponse(200, "OK")
	resp.Header.Add("Content-Type", "text/plain")

	enc := NewEncoder()
	f := enc.EncodeHeaders(resp)

	assert.Equal(t, byte(0x41), f[0])
	assert.Equal(t, byte(0x42), f[1])
	length := binary.BigEndian.Uint16(f[2:4])
	assert.EqualValues(t, len(f)-4, length)
	assert.Equal(t, byte(PacketSendHeaders), f[4])

	status := binary.BigEndian.Uint16(f[5:7])
	assert.EqualValues(t, 200, status)
}

func TestEncodeBodySplitsAtMaxPacketSize(t *testing.T) {
	data := make([]byte, maxBodyChunk*2+10)
	for i := range data {
		data[i] = byte(i)
	}

	enc := NewEncoder()
	packets := enc.EncodeBody(data)
	require.Len(t, packets, 3)
	for _, p := range packets {
		assert.LessOrEqual(t, len(p), MaxPacketSize)
	}

	var recombined []byte
	for _, p := range packets {
		length := binary.BigEndian.Uint16(p[2:4])
		payload := p[4 : 4+length]
		require.Equal(t, byte(PacketSendBodyChunk), payload[0])
		n := binary.BigEndian.Uint16(payload[1:3])
		recombined = append(recombined, payload[3:3+n]...)
	}
	assert.Equal(t, data, recombined)
}

func TestEncodeEndResponseKeepAliveByte(t *testing.T) {
	enc := NewEncoder()
	f := enc.EncodeEndResponse(true)
	assert.Equal(t, byte(1), f[len(f)-1])

	f = enc.EncodeEndResponse(false)
	assert.Equal(t, byte(0), f[len(f)-1])
}

func TestEncodeGetBodyChunkRequestsExplicitLength(t *testing.T) {
	enc := NewEncoder()
	f := enc.EncodeGetBodyChunk(4096)
	assert.Equal(t, byte(PacketGetBodyChunk), f[4])
	assert.EqualValues(t, 4096, binary.BigEndian.Uint16(f[5:7]))
}

func TestBridgeToHTTPRequest(t *testing.T) {
	raw := buildForwardRequest(t, []KeyValue{{Name: "Host", Value: "example.com"}}, nil)
	mm := buffer.NewMemoryManager()
	d := NewDecoder()
	msgs, err := d.Decode(mm.Wrap(raw))
	require.NoError(t, err)
	fr := msgs[0].(*ForwardRequest)

	req := ToHTTPRequest(fr)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/x", req.URI)
	assert.Equal(t, http1.HTTP11, req.Protocol)
	assert.Equal(t, "example.com", req.ServerName)
	assert.Equal(t, 80, req.ServerPort)
}
