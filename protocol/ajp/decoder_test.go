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

	"github.com/tidewire/tidewire/errs"
	"github.com/tidewire/tidewire/internal/buffer"
)

// buildForwardRequest assembles a valid FORWARD_REQUEST payload (method
// GET, protocol HTTP/1.1, URI /x) carrying the given headers and the
// attribute bytes attrs returns, for test fixtures.
func buildForwardRequest(t *testing.T, headers []KeyValue, attrs func() []byte) []byte {
	t.Helper()
	var p []byte
	p = append(p, PacketForwardRequest)
	p = append(p, 2) // GET
	p = appendAJPString(p, "HTTP/1.1")
	p = appendAJPString(p, "/x")
	p = appendAJPString(p, "10.0.0.1")
	p = appendAJPString(p, "client.example.com")
	p = appendAJPString(p, "example.com")
	p = append(p, 0, 80) // server port 80
	p = append(p, 0)     // not SSL

	var hc [2]byte
	binary.BigEndian.PutUint16(hc[:], uint16(len(headers)))
	p = append(p, hc[:]...)
	for _, h := range headers {
		if code, ok := reverseCommonHeader(h.Name); ok {
			p = append(p, byte(code>>8), byte(code))
		} else {
			p = appendAJPString(p, h.Name)
		}
		p = appendAJPString(p, h.Value)
	}

	if attrs != nil {
		p = append(p, attrs()...)
	}
	p = append(p, attrAreDone)
	return frame(magicForwarder, p)
}

func reverseCommonHeader(name string) (uint16, bool) {
	for code, n := range commonHeaderTable {
		if n == name {
			return code, true
		}
	}
	return 0, false
}

func TestDecodeForwardRequestBasic(t *testing.T) {
	raw := buildForwardRequest(t, []KeyValue{{Name: "Host", Value: "example.com"}}, nil)

	mm := buffer.NewMemoryManager()
	d := NewDecoder()
	msgs, err := d.Decode(mm.Wrap(raw))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	fr, ok := msgs[0].(*ForwardRequest)
	require.True(t, ok)
	assert.Equal(t, "GET", fr.Method)
	assert.Equal(t, "/x", fr.RequestURI)
	assert.Equal(t, "example.com", fr.ServerName)
	assert.Equal(t, 80, fr.ServerPort)
	assert.False(t, fr.IsSSL)
	require.Len(t, fr.Headers, 1)
	assert.Equal(t, "Host", fr.Headers[0].Name)
	assert.EqualValues(t, -1, fr.ContentLength)
}

func TestDecodeForwardRequestWithContentLengthThenBody(t *testing.T) {
	raw := buildForwardRequest(t, []KeyValue{{Name: "Content-Length", Value: "5"}}, nil)

	var dataPacket []byte
	dataPacket = append(dataPacket, 0, 5)
	dataPacket = append(dataPacket, []byte("hello")...)
	dataFrame := frame(magicForwarder, dataPacket)

	mm := buffer.NewMemoryManager()
	d := NewDecoder()
	msgs, err := d.Decode(mm.Wrap(append(raw, dataFrame...)))
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	fr := msgs[0].(*ForwardRequest)
	assert.EqualValues(t, 5, fr.ContentLength)

	chunk1 := msgs[1].(*DataChunk)
	assert.Equal(t, "hello", string(chunk1.Data))
	assert.False(t, d.awaitBody)
}

// TestDecodeEmptyDataPacketEndsBodyEarly covers the other termination
// path: an empty data packet signals end of body even if fewer bytes
// than Content-Length arrived (a misbehaving or streaming peer).
func TestDecodeEmptyDataPacketEndsBodyEarly(t *testing.T) {
	raw := buildForwardRequest(t, []KeyValue{{Name: "Content-Length", Value: "100"}}, nil)
	endFrame := frame(magicForwarder, []byte{0, 0})

	mm := buffer.NewMemoryManager()
	d := NewDecoder()
	msgs, err := d.Decode(mm.Wrap(append(raw, endFrame...)))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[1].(*DataChunk).Data)
	assert.False(t, d.awaitBody)
}

func TestDecodeSplitAcrossReads(t *testing.T) {
	raw := buildForwardRequest(t, []KeyValue{{Name: "Host", Value: "x"}}, nil)
	mm := buffer.NewMemoryManager()

	for split := 1; split < len(raw); split++ {
		d := NewDecoder()
		var all []any
		msgs1, err := d.Decode(mm.Wrap(raw[:split]))
		require.NoError(t, err)
		all = append(all, msgs1...)
		msgs2, err := d.Decode(mm.Wrap(raw[split:]))
		require.NoError(t, err)
		all = append(all, msgs2...)
		require.Len(t, all, 1, "split at %d", split)
	}
}

func TestDecodeRejectsOversizedPacket(t *testing.T) {
	hdr := make([]byte, 4)
	hdr[0], hdr[1] = magicForwarder[0], magicForwarder[1]
	binary.BigEndian.PutUint16(hdr[2:4], 8189) // 8189+4 > 8192

	mm := buffer.NewMemoryManager()
	d := NewDecoder()
	_, err := d.Decode(mm.Wrap(hdr))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.LimitExceeded))
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	hdr := []byte{0x00, 0x00, 0x00, 0x01, 0x00}
	mm := buffer.NewMemoryManager()
	d := NewDecoder()
	_, err := d.Decode(mm.Wrap(hdr))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ProtocolFormat))
}

func TestDecodeControlMessages(t *testing.T) {
	mm := buffer.NewMemoryManager()
	d := NewDecoder()

	for _, tc := range []struct {
		code byte
		want any
	}{
		{PacketShutdown, &Shutdown{}},
		{PacketPing, &Ping{}},
		{PacketCPing, &CPing{}},
	} {
		f := frame(magicForwarder, []byte{tc.code})
		msgs, err := d.Decode(mm.Wrap(f))
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.IsType(t, tc.want, msgs[0])
	}
}

func TestDecodeReqAttributeIntoMap(t *testing.T) {
	raw := buildForwardRequest(t, nil, func() []byte {
		var b []byte
		b = append(b, attrReqAttribute)
		b = appendAJPString(b, "custom-key")
		b = appendAJPString(b, "custom-value")
		return b
	})

	mm := buffer.NewMemoryManager()
	d := NewDecoder()
	msgs, err := d.Decode(mm.Wrap(raw))
	require.NoError(t, err)
	fr := msgs[0].(*ForwardRequest)
	require.NotNil(t, fr.Attributes)
	assert.Equal(t, "custom-value", fr.Attributes["custom-key"])
}
