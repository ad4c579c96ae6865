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

	"github.com/mitchellh/mapstructure"

	"github.com/tidewire/tidewire/errs"
	"github.com/tidewire/tidewire/internal/buffer"
)

type decodeState int

const (
	stateFrameHeader decodeState = iota
	stateFramePayload
)

// Decoder is a streaming AJP/1.3 frame decoder bound to one connection.
// It demuxes FORWARD_REQUEST, SHUTDOWN, PING, CPING and body data
// packets, the last distinguished from the command packets by whether
// the decoder is currently awaiting body bytes rather than by a type
// byte, matching AJP's own wire convention.
type Decoder struct {
	pending     buffer.Buffer
	state       decodeState
	frameLen    int
	awaitBody   bool
	bodyWanted  int64 // ContentLength still outstanding on the request in flight
}

// NewDecoder returns a ready-to-use Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode feeds newly read bytes in and returns every complete message
// decodable from them so far: *ForwardRequest, *DataChunk, *Ping,
// *CPing or *Shutdown.
func (d *Decoder) Decode(in buffer.Buffer) ([]any, error) {
	d.pending = buffer.AppendBuffers(d.pending, in)
	if d.pending != nil {
		d.pending.Shrink()
	}

	var out []any
	for {
		progressed, msg, err := d.step()
		if err != nil {
			return out, err
		}
		if msg != nil {
			out = append(out, msg)
		}
		if !progressed {
			return out, nil
		}
	}
}

func (d *Decoder) step() (bool, any, error) {
	switch d.state {
	case stateFrameHeader:
		return d.stepFrameHeader()
	case stateFramePayload:
		return d.stepFramePayload()
	default:
		return false, nil, errs.New(errs.Internal, "ajp: unknown decoder state %d", d.state)
	}
}

func (d *Decoder) stepFrameHeader() (bool, any, error) {
	if d.pending.Remaining() < 4 {
		return false, nil, nil
	}
	hdr := make([]byte, 4)
	d.pending.Get(hdr)

	if hdr[0] != magicForwarder[0] || hdr[1] != magicForwarder[1] {
		return false, nil, errs.New(errs.ProtocolFormat, "ajp: bad magic %#02x%02x", hdr[0], hdr[1])
	}
	length := int(binary.BigEndian.Uint16(hdr[2:4]))
	if length+4 > MaxPacketSize {
		return false, nil, errs.New(errs.LimitExceeded, "ajp: packet length %d exceeds %d", length+4, MaxPacketSize)
	}
	d.frameLen = length
	d.state = stateFramePayload
	return true, nil, nil
}

func (d *Decoder) stepFramePayload() (bool, any, error) {
	if d.pending.Remaining() < d.frameLen {
		return false, nil, nil
	}
	payload := make([]byte, d.frameLen)
	d.pending.Get(payload)
	d.state = stateFrameHeader

	if d.awaitBody {
		return true, d.decodeDataChunk(payload)
	}

	if len(payload) == 0 {
		return false, nil, errs.New(errs.ProtocolFormat, "ajp: empty command packet")
	}
	switch payload[0] {
	case PacketForwardRequest:
		fr, err := decodeForwardRequest(payload[1:])
		if err != nil {
			return false, nil, err
		}
		if fr.ContentLength > 0 {
			d.awaitBody = true
			d.bodyWanted = fr.ContentLength
		}
		return true, fr, nil
	case PacketShutdown:
		return true, &Shutdown{}, nil
	case PacketPing:
		return true, &Ping{}, nil
	case PacketCPing:
		return true, &CPing{}, nil
	default:
		return false, nil, errs.New(errs.ProtocolFormat, "ajp: unknown packet type %d", payload[0])
	}
}

// decodeDataChunk interprets payload as a body-data packet: a 2-byte
// length prefix followed by that many bytes, with no command byte. An
// empty chunk (length 0) signals end of body.
func (d *Decoder) decodeDataChunk(payload []byte) (any, error) {
	if len(payload) < 2 {
		return nil, errs.New(errs.ProtocolFormat, "ajp: truncated data chunk")
	}
	n := int(binary.BigEndian.Uint16(payload[0:2]))
	if 2+n > len(payload) {
		return nil, errs.New(errs.ProtocolFormat, "ajp: data chunk length %d exceeds packet", n)
	}
	data := payload[2 : 2+n]
	d.bodyWanted -= int64(n)
	if n == 0 || d.bodyWanted <= 0 {
		d.awaitBody = false
	}
	return &DataChunk{Data: data}, nil
}

func decodeForwardRequest(b []byte) (*ForwardRequest, error) {
	r := &cursor{b: b}

	methodCode, err := r.byte()
	if err != nil {
		return nil, err
	}
	method, ok := methodTable[methodCode]
	if !ok {
		return nil, errs.New(errs.ProtocolFormat, "ajp: unknown method code %d", methodCode)
	}

	fr := &ForwardRequest{Method: method, ContentLength: -1}

	if fr.Protocol, err = r.str(); err != nil {
		return nil, err
	}
	if fr.RequestURI, err = r.str(); err != nil {
		return nil, err
	}
	if fr.RemoteAddr, err = r.str(); err != nil {
		return nil, err
	}
	if fr.RemoteHost, err = r.str(); err != nil {
		return nil, err
	}
	if fr.ServerName, err = r.str(); err != nil {
		return nil, err
	}
	port, err := r.uint16()
	if err != nil {
		return nil, err
	}
	fr.ServerPort = int(port)
	isSSL, err := r.byte()
	if err != nil {
		return nil, err
	}
	fr.IsSSL = isSSL != 0

	headerCount, err := r.uint16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(headerCount); i++ {
		name, value, err := decodeHeaderPair(r)
		if err != nil {
			return nil, err
		}
		fr.Headers = append(fr.Headers, KeyValue{Name: name, Value: value})
		if name == "Content-Length" {
			if n, ok := parseInt64(value); ok {
				fr.ContentLength = n
			}
		}
	}

	if err := decodeAttributes(r, fr); err != nil {
		return nil, err
	}
	return fr, nil
}

// decodeHeaderPair reads one FORWARD_REQUEST header: either a coded
// common header (0xA0xx, the name never spelled out on the wire) or an
// arbitrary length-prefixed name.
func decodeHeaderPair(r *cursor) (name, value string, err error) {
	hi, err := r.byte()
	if err != nil {
		return "", "", err
	}
	if hi == 0xA0 {
		lo, err := r.byte()
		if err != nil {
			return "", "", err
		}
		code := uint16(hi)<<8 | uint16(lo)
		name, ok := commonHeaderTable[code]
		if !ok {
			return "", "", errs.New(errs.ProtocolFormat, "ajp: unknown coded header %#04x", code)
		}
		value, err := r.str()
		return name, value, err
	}
	r.unread(1)
	name, err = r.str()
	if err != nil {
		return "", "", err
	}
	value, err = r.str()
	return name, value, err
}

// decodeAttributes reads the attribute TLV sequence terminated by 0xFF.
// REQ_ATTRIBUTE entries are collected into a loosely-typed bag first and
// handed to mapstructure.Decode at the end, the same way confengine
// decodes an arbitrary config bag into a concrete shape: it's the
// natural fit for turning a wire-format string/string TLV sequence into
// ForwardRequest.Attributes without a manual field-by-field copy.
func decodeAttributes(r *cursor, fr *ForwardRequest) error {
	raw := make(map[string]any)
	if err := decodeAttributesInto(r, fr, raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	fr.Attributes = make(map[string]string, len(raw))
	if err := mapstructure.Decode(raw, &fr.Attributes); err != nil {
		return errs.Wrap(errs.ProtocolFormat, err, "ajp: decode REQ_ATTRIBUTE bag")
	}
	return nil
}

func decodeAttributesInto(r *cursor, fr *ForwardRequest, raw map[string]any) error {
	for {
		code, err := r.byte()
		if err != nil {
			return err
		}
		if code == attrAreDone {
			return nil
		}
		switch code {
		case attrRemoteUser:
			fr.RemoteUser, err = r.str()
		case attrAuthType:
			fr.AuthType, err = r.str()
		case attrQueryString:
			fr.QueryString, err = r.str()
		case attrRoute:
			fr.Route, err = r.str()
		case attrSSLCert:
			fr.SSLCert, err = r.str()
		case attrSSLCipher:
			fr.SSLCipher, err = r.str()
		case attrSSLSession:
			fr.SSLSession, err = r.str()
		case attrSSLKeySize:
			fr.SSLKeySize, err = r.str()
		case attrStoredMethod:
			fr.StoredMethod, err = r.str()
		case attrSecret:
			fr.Secret, err = r.str()
		case attrReqAttribute:
			var k, v string
			k, err = r.str()
			if err == nil {
				v, err = r.str()
			}
			if err == nil {
				raw[k] = v
			}
		default:
			// Unrecognized (including JK-specific variants not broken
			// out into a dedicated field): read and drop as a string so
			// a forward-compatible peer's extra attributes don't break
			// framing for everything after them.
			_, err = r.str()
		}
		if err != nil {
			return err
		}
	}
}

func parseInt64(s string) (int64, bool) {
	var n int64
	if s == "" {
		return 0, false
	}
	for _, c := range []byte(s) {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}

// cursor is a bounds-checked reader over a decoded packet payload,
// reading AJP's own primitive encodings (bytes, big-endian uint16, and
// length-prefixed strings with no trailing NUL counted in the length).
type cursor struct {
	b   []byte
	pos int
}

func (c *cursor) byte() (byte, error) {
	if c.pos+1 > len(c.b) {
		return 0, errs.New(errs.ProtocolFormat, "ajp: truncated packet")
	}
	v := c.b[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) unread(n int) { c.pos -= n }

func (c *cursor) uint16() (uint16, error) {
	if c.pos+2 > len(c.b) {
		return 0, errs.New(errs.ProtocolFormat, "ajp: truncated packet")
	}
	v := binary.BigEndian.Uint16(c.b[c.pos : c.pos+2])
	c.pos += 2
	return v, nil
}

// str reads an AJP string: a 2-byte length followed by that many bytes
// of data and a trailing NUL not counted in the length. A length of
// 0xFFFF denotes the AJP "null string" and decodes to "".
func (c *cursor) str() (string, error) {
	n, err := c.uint16()
	if err != nil {
		return "", err
	}
	if n == 0xFFFF {
		return "", nil
	}
	if c.pos+int(n)+1 > len(c.b) {
		return "", errs.New(errs.ProtocolFormat, "ajp: truncated string")
	}
	s := string(c.b[c.pos : c.pos+int(n)])
	c.pos += int(n) + 1 // skip the trailing NUL
	return s, nil
}
