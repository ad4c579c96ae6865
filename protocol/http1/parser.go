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
	"bytes"
	"strconv"
	"strings"

	"github.com/tidewire/tidewire/errs"
	"github.com/tidewire/tidewire/internal/buffer"
)

// parseState walks METHOD -> URI -> VERSION (folded into one request
// line state), then HEADERS, then one of the body framings, then
// TRAILERS for chunked bodies, back to the request line for the next
// pipelined request.
type parseState int

const (
	stateRequestLine parseState = iota
	stateHeaders
	stateIdentityBody
	stateChunkSize
	stateChunkData
	stateChunkCRLF
	stateTrailers
	stateSkipRemainder
	stateEmitEmptyBody
)

// ProcessingState exposes the decoder's progress to filters that need
// to make keep-alive or back-pressure decisions without reaching into
// Decoder internals.
type ProcessingState struct {
	BytesRemaining int64
}

// Decoder is a streaming HTTP/1.x request decoder. One Decoder is bound
// to one connection and keeps state across multiple Decode calls and
// across pipelined requests on the same connection.
type Decoder struct {
	limits Limits

	state       parseState
	pending     buffer.Buffer
	req         *HttpRequestPacket
	headerCount int

	bodyRemaining int64 // identity body or current chunk's remaining bytes

	trailer      HttpHeader
	trailerCount int
}

// NewDecoder returns a Decoder enforcing limits.
func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits}
}

// State reports how much of the current body is still expected, for
// filters implementing the maxPayloadRemainderToSkip keep-alive policy.
func (d *Decoder) State() ProcessingState {
	return ProcessingState{BytesRemaining: d.bodyRemaining}
}

// Decode feeds newly read bytes into the decoder and returns every
// complete message (in order) that can be produced from them: a
// *HttpRequestPacket followed by one or more *HttpContent values per
// request. It returns (nil, nil) when in needs more bytes to make
// progress, never an error in that case alone.
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

// step runs one state transition. progressed is false when the current
// state needs more bytes than are pending right now.
func (d *Decoder) step() (progressed bool, msg any, err error) {
	switch d.state {
	case stateRequestLine:
		return d.stepRequestLine()
	case stateHeaders:
		return d.stepHeaders()
	case stateIdentityBody:
		return d.stepIdentityBody()
	case stateChunkSize:
		return d.stepChunkSize()
	case stateChunkData:
		return d.stepChunkData()
	case stateChunkCRLF:
		return d.stepChunkCRLF()
	case stateTrailers:
		return d.stepTrailers()
	case stateSkipRemainder:
		return d.stepSkipRemainder()
	case stateEmitEmptyBody:
		d.state = stateRequestLine
		return true, &HttpContent{Last: true}, nil
	default:
		return false, nil, errs.New(errs.Internal, "http1: unknown parser state %d", d.state)
	}
}

// readLine returns the next CRLF- or LF-terminated line (terminator
// stripped) as a copy taken out of the pending buffer, which advances
// past the line. ok is false when no terminator has arrived yet.
func (d *Decoder) readLine(maxLen int) (line []byte, ok bool, err error) {
	b := d.pending.Peek()
	idx := bytes.IndexByte(b, '\n')
	if idx == -1 {
		if len(b) > maxLen {
			return nil, false, errs.New(errs.LimitExceeded, "http1: line exceeds %d bytes with no terminator", maxLen)
		}
		return nil, false, nil
	}
	if idx+1 > maxLen {
		return nil, false, errs.New(errs.LimitExceeded, "http1: line of %d bytes exceeds limit %d", idx+1, maxLen)
	}

	raw := make([]byte, idx+1)
	d.pending.Get(raw)
	raw = raw[:idx]
	raw = bytes.TrimSuffix(raw, []byte("\r"))
	return raw, true, nil
}

func (d *Decoder) stepRequestLine() (bool, any, error) {
	line, ok, err := d.readLine(d.limits.MaxRequestLineBytes)
	if err != nil || !ok {
		return false, nil, err
	}
	if len(line) == 0 {
		// RFC 7230 §3.5: tolerate a stray leading CRLF before the
		// request line from a previous response's trailing newline.
		return true, nil, nil
	}

	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) != 3 {
		return false, nil, errs.New(errs.ProtocolFormat, "http1: malformed request line %q", line)
	}
	proto, ok := ParseProtocol(parts[2])
	if !ok {
		return false, nil, errs.New(errs.ProtocolFormat, "http1: unsupported protocol %q", parts[2])
	}

	uri, query, _ := strings.Cut(parts[1], "?")
	d.req = &HttpRequestPacket{
		Method:        parts[0],
		URI:           uri,
		Query:         query,
		Protocol:      proto,
		ContentLength: -1,
	}
	d.headerCount = 0
	d.state = stateHeaders
	return true, nil, nil
}

func (d *Decoder) stepHeaders() (bool, any, error) {
	line, ok, err := d.readLine(d.limits.MaxHeaderLineBytes)
	if err != nil || !ok {
		return false, nil, err
	}

	if len(line) == 0 {
		return true, d.finishHeaders()
	}

	// RFC 7230 deprecates header folding, but real clients (and the
	// Grizzly test suite this codec was derived from) still send it:
	// a line beginning with SP/HTAB continues the previous value.
	if line[0] == ' ' || line[0] == '\t' {
		if d.req.Header.Len() == 0 {
			return false, nil, errs.New(errs.ProtocolFormat, "http1: header continuation with no preceding header")
		}
		last := &d.req.Header.pairs[len(d.req.Header.pairs)-1]
		last.Value += " " + strings.TrimSpace(string(line))
		return true, nil, nil
	}

	name, value, ok := strings.Cut(string(line), ":")
	if !ok {
		return false, nil, errs.New(errs.ProtocolFormat, "http1: malformed header line %q", line)
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	d.req.Header.Add(name, value)

	d.headerCount++
	if d.headerCount > d.limits.MaxHeaderCount {
		return false, nil, errs.New(errs.LimitExceeded, "http1: header count exceeds %d", d.limits.MaxHeaderCount)
	}
	return true, nil, nil
}

// finishHeaders determines body framing from the now-complete header
// set and transitions to the matching state, emitting the request
// packet itself as the message for this step.
func (d *Decoder) finishHeaders() (any, error) {
	req := d.req

	if strings.EqualFold(req.Header.Get("Expect"), "100-continue") {
		req.ExpectContinue = true
	}

	te := strings.ToLower(req.Header.Get("Transfer-Encoding"))
	if strings.Contains(te, "chunked") {
		req.Chunked = true
		req.ContentLength = -1
		d.state = stateChunkSize
		return req, nil
	}

	if cl := req.Header.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil || n < 0 {
			return nil, errs.New(errs.ProtocolFormat, "http1: bad Content-Length %q", cl)
		}
		req.ContentLength = n
		if n == 0 {
			d.state = stateEmitEmptyBody
			return req, nil
		}
		d.bodyRemaining = n
		d.state = stateIdentityBody
		return req, nil
	}

	// No framing header at all: a request-side body is assumed absent
	// (unlike responses, which may be close-delimited).
	req.ContentLength = 0
	d.state = stateEmitEmptyBody
	return req, nil
}

func (d *Decoder) stepIdentityBody() (bool, any, error) {
	avail := d.pending.Remaining()
	if avail == 0 {
		return false, nil, nil
	}
	take := avail
	if int64(take) > d.bodyRemaining {
		take = int(d.bodyRemaining)
	}
	data := make([]byte, take)
	d.pending.Get(data)
	d.bodyRemaining -= int64(take)

	last := d.bodyRemaining == 0
	if last {
		d.state = stateRequestLine
	}
	return true, &HttpContent{Data: data, Last: last}, nil
}

func (d *Decoder) stepChunkSize() (bool, any, error) {
	line, ok, err := d.readLine(d.limits.MaxChunkSizeLineBytes)
	if err != nil || !ok {
		return false, nil, err
	}
	sizeText, _, _ := strings.Cut(string(line), ";") // discard chunk-extensions
	sizeText = strings.TrimSpace(sizeText)
	n, err := strconv.ParseInt(sizeText, 16, 64)
	if err != nil || n < 0 {
		return false, nil, errs.New(errs.ProtocolFormat, "http1: bad chunk size %q", sizeText)
	}

	if n == 0 {
		d.state = stateTrailers
		d.trailer = HttpHeader{}
		d.trailerCount = 0
		return true, nil, nil
	}
	d.bodyRemaining = n
	d.state = stateChunkData
	return true, nil, nil
}

func (d *Decoder) stepChunkData() (bool, any, error) {
	avail := d.pending.Remaining()
	if avail == 0 {
		return false, nil, nil
	}
	take := avail
	if int64(take) > d.bodyRemaining {
		take = int(d.bodyRemaining)
	}
	data := make([]byte, take)
	d.pending.Get(data)
	d.bodyRemaining -= int64(take)

	if d.bodyRemaining == 0 {
		d.state = stateChunkCRLF
	}
	return true, &HttpContent{Data: data}, nil
}

func (d *Decoder) stepChunkCRLF() (bool, any, error) {
	line, ok, err := d.readLine(2)
	if err != nil || !ok {
		return false, nil, err
	}
	if len(line) != 0 {
		return false, nil, errs.New(errs.ProtocolFormat, "http1: expected CRLF after chunk data")
	}
	d.state = stateChunkSize
	return true, nil, nil
}

func (d *Decoder) stepTrailers() (bool, any, error) {
	line, ok, err := d.readLine(d.limits.MaxHeaderLineBytes)
	if err != nil || !ok {
		return false, nil, err
	}
	if len(line) == 0 {
		d.state = stateRequestLine
		return true, &HttpContent{Last: true, Trailer: d.trailer}, nil
	}
	name, value, ok := strings.Cut(string(line), ":")
	if !ok {
		return false, nil, errs.New(errs.ProtocolFormat, "http1: malformed trailer line %q", line)
	}
	d.trailer.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	d.trailerCount++
	if d.trailerCount > d.limits.MaxTrailerCount {
		return false, nil, errs.New(errs.LimitExceeded, "http1: trailer count exceeds %d", d.limits.MaxTrailerCount)
	}
	return true, nil, nil
}

// SkipRemainder switches the decoder into a mode that discards up to
// MaxPayloadRemainderToSkip bytes of the body currently in flight
// instead of surfacing further HttpContent. CodecFilter uses it when a
// request resolves to no handler, so its declared body is discarded
// unread while the connection is kept alive for the next request.
func (d *Decoder) SkipRemainder() {
	if d.bodyRemaining > d.limits.MaxPayloadRemainderToSkip {
		return // too much to swallow; caller should close instead
	}
	d.state = stateSkipRemainder
}

func (d *Decoder) stepSkipRemainder() (bool, any, error) {
	avail := d.pending.Remaining()
	if avail == 0 {
		return false, nil, nil
	}
	take := avail
	if int64(take) > d.bodyRemaining {
		take = int(d.bodyRemaining)
	}
	d.pending.SetPosition(d.pending.Position() + take)
	d.bodyRemaining -= int64(take)
	if d.bodyRemaining == 0 {
		d.state = stateRequestLine
	}
	return true, nil, nil
}
