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

	"github.com/tidewire/tidewire/protocol/http1"
)

// responseHeaderTable codes the common response headers AJP/1.3 defines
// a 0xA0xx shorthand for, mirroring commonHeaderTable on the request
// side.
var responseHeaderTable = map[string]uint16{
	"Content-Type":     0xA001,
	"Content-Language": 0xA002,
	"Content-Length":   0xA003,
	"Date":             0xA004,
	"Last-Modified":    0xA005,
	"Location":         0xA006,
	"Set-Cookie":       0xA007,
	"Set-Cookie2":      0xA008,
	"Servlet-Engine":   0xA009,
	"Status":           0xA00A,
	"WWW-Authenticate": 0xA00B,
}

// Encoder serializes response-side AJP messages: SEND_HEADERS,
// SEND_BODY_CHUNK, END_RESPONSE, GET_BODY_CHUNK.
type Encoder struct{}

// NewEncoder returns a ready-to-use Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// EncodeHeaders serializes a SEND_HEADERS packet for resp.
func (e *Encoder) EncodeHeaders(resp *http1.HttpResponsePacket) []byte {
	var payload []byte
	payload = append(payload, PacketSendHeaders)

	var statusBuf [2]byte
	binary.BigEndian.PutUint16(statusBuf[:], uint16(resp.Status))
	payload = append(payload, statusBuf[:]...)

	reason := resp.Reason
	if reason == "" {
		reason = "OK"
	}
	payload = appendAJPString(payload, reason)

	headers := resp.Header.All()
	var countBuf [2]byte
	binary.BigEndian.PutUint16(countBuf[:], uint16(len(headers)))
	payload = append(payload, countBuf[:]...)

	for _, h := range headers {
		if code, ok := responseHeaderTable[h.Name]; ok {
			var codeBuf [2]byte
			binary.BigEndian.PutUint16(codeBuf[:], code)
			payload = append(payload, codeBuf[:]...)
		} else {
			payload = appendAJPString(payload, h.Name)
		}
		payload = appendAJPString(payload, h.Value)
	}

	return frame(magicServer, payload)
}

// EncodeBody splits data into one or more SEND_BODY_CHUNK packets, none
// exceeding MaxPacketSize once framing overhead is accounted for.
func (e *Encoder) EncodeBody(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	var packets [][]byte
	for len(data) > 0 {
		n := len(data)
		if n > maxBodyChunk {
			n = maxBodyChunk
		}
		chunk := data[:n]
		data = data[n:]

		payload := make([]byte, 0, n+4)
		payload = append(payload, PacketSendBodyChunk)
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(n))
		payload = append(payload, lenBuf[:]...)
		payload = append(payload, chunk...)
		payload = append(payload, 0x00)

		packets = append(packets, frame(magicServer, payload))
	}
	return packets
}

// EncodeEndResponse serializes END_RESPONSE, whose single payload byte
// after the type code signals whether the container wants the
// connection kept alive for another request.
func (e *Encoder) EncodeEndResponse(keepAlive bool) []byte {
	var ka byte
	if keepAlive {
		ka = 1
	}
	return frame(magicServer, []byte{PacketEndResponse, ka})
}

// EncodeGetBodyChunk serializes a GET_BODY_CHUNK pull request for up to
// n more bytes of request body.
func (e *Encoder) EncodeGetBodyChunk(n int) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(n))
	return frame(magicServer, append([]byte{PacketGetBodyChunk}, lenBuf[:]...))
}

func frame(magic [2]byte, payload []byte) []byte {
	out := make([]byte, 0, 4+len(payload))
	out = append(out, magic[0], magic[1])
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	out = append(out, lenBuf[:]...)
	out = append(out, payload...)
	return out
}

func appendAJPString(b []byte, s string) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	b = append(b, lenBuf[:]...)
	b = append(b, s...)
	b = append(b, 0x00)
	return b
}
