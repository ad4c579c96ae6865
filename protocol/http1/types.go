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

// Package http1 implements a streaming HTTP/1.x codec: a request
// parser state machine that never requires the whole message to be
// buffered, plus a wire serializer for responses. It is the
// in-process counterpart to protocol/ajp, which bridges AJP's binary
// framing into the same HttpRequestPacket/HttpResponsePacket shapes.
package http1

import "strings"

// Header is one name/value pair as it appeared on the wire. Order is
// preserved because some servers and intermediaries are sensitive to
// header order (and the serializer should round-trip what it received
// when proxying).
type Header struct {
	Name  string
	Value string
}

// HttpHeader is an ordered, case-insensitive multimap of headers.
type HttpHeader struct {
	pairs []Header
}

// Add appends name/value without removing any existing values for name.
func (h *HttpHeader) Add(name, value string) {
	h.pairs = append(h.pairs, Header{Name: name, Value: value})
}

// Set replaces every existing value for name with value.
func (h *HttpHeader) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Get returns the first value for name, case-insensitively, or "".
func (h *HttpHeader) Get(name string) string {
	for _, p := range h.pairs {
		if strings.EqualFold(p.Name, name) {
			return p.Value
		}
	}
	return ""
}

// Values returns every value recorded for name, in wire order.
func (h *HttpHeader) Values(name string) []string {
	var out []string
	for _, p := range h.pairs {
		if strings.EqualFold(p.Name, name) {
			out = append(out, p.Value)
		}
	}
	return out
}

// Has reports whether name was set at all.
func (h *HttpHeader) Has(name string) bool {
	for _, p := range h.pairs {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// Del removes every value recorded for name.
func (h *HttpHeader) Del(name string) {
	out := h.pairs[:0]
	for _, p := range h.pairs {
		if !strings.EqualFold(p.Name, name) {
			out = append(out, p)
		}
	}
	h.pairs = out
}

// All returns every header pair in wire order.
func (h *HttpHeader) All() []Header { return h.pairs }

// Len returns the number of header pairs, including repeats.
func (h *HttpHeader) Len() int { return len(h.pairs) }

// Protocol is the HTTP version on the request or status line.
type Protocol int

const (
	ProtocolUnknown Protocol = iota
	HTTP10
	HTTP11
)

func (p Protocol) String() string {
	switch p {
	case HTTP10:
		return "HTTP/1.0"
	case HTTP11:
		return "HTTP/1.1"
	default:
		return "HTTP/0.9"
	}
}

func ParseProtocol(s string) (Protocol, bool) {
	switch s {
	case "HTTP/1.0":
		return HTTP10, true
	case "HTTP/1.1":
		return HTTP11, true
	default:
		return ProtocolUnknown, false
	}
}

// HttpRequestPacket is the request-line-plus-headers half of a parsed
// HTTP/1.x (or AJP-bridged) request. The body streams separately as a
// sequence of HttpContent values.
type HttpRequestPacket struct {
	Method   string
	URI      string
	Query    string
	Protocol Protocol
	Header   HttpHeader

	// ContentLength is -1 for a chunked request and 0 when the parser
	// found neither Content-Length nor Transfer-Encoding: chunked; the
	// AJP bridge sets -1 when the forwarded request declares no length.
	ContentLength int64
	Chunked       bool
	ExpectContinue bool

	// Supplemental fields restored from the Grizzly-derived original:
	// unused by the HTTP/1.x wire parser itself, but populated by the
	// AJP bridge and shared by both codecs on the same packet type.
	RemoteAddress string
	LocalAddress  string
	ServerName    string
	ServerPort    int
	Secure        bool

	Trailer HttpHeader
}

// KeepAlive reports whether the connection should stay open after this
// request/response exchange, from the request's own perspective (the
// response may still downgrade it, e.g. by omitting Content-Length on
// HTTP/1.0 with no Connection: keep-alive).
func (r *HttpRequestPacket) KeepAlive() bool {
	conn := strings.ToLower(r.Header.Get("Connection"))
	switch r.Protocol {
	case HTTP11:
		return conn != "close"
	case HTTP10:
		return conn == "keep-alive"
	default:
		return false
	}
}

// HttpResponsePacket is the status-line-plus-headers half of an outgoing
// HTTP/1.x response.
type HttpResponsePacket struct {
	Protocol Protocol
	Status   int
	Reason   string
	Header   HttpHeader

	ContentLength int64 // -1 means unknown: forces chunked on HTTP/1.1, close-delimited on HTTP/1.0
	Chunked       bool
}

// NewResponse returns an HTTP/1.1 response with the given status and
// reason, ContentLength -1 (unknown) and no headers set yet.
func NewResponse(status int, reason string) *HttpResponsePacket {
	return &HttpResponsePacket{
		Protocol:      HTTP11,
		Status:        status,
		Reason:        reason,
		ContentLength: -1,
	}
}

// HttpContent is one chunk of a request or response body as it streams
// through the filter chain. Last is true for the terminal zero-length
// chunk (or the final content object of an identity-encoded body), at
// which point Trailer may carry trailing headers from a chunked body.
type HttpContent struct {
	Data    []byte
	Last    bool
	Trailer HttpHeader
}

// NoBodyExpected reports whether method/status combinations that are
// defined to never carry a body (per RFC 7230 §3.3.3) apply to status.
// HEAD and 1xx/204/304 responses are framed as zero-length regardless of
// any Content-Length header present.
func NoBodyExpected(method string, status int) bool {
	if method == "HEAD" {
		return true
	}
	if status >= 100 && status < 200 {
		return true
	}
	return status == 204 || status == 304
}
