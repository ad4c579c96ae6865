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

	"github.com/tidewire/tidewire/filter"
	"github.com/tidewire/tidewire/internal/buffer"
	"github.com/tidewire/tidewire/protocol/http1/httpenc"
)

// CodecFilter is the terminal filter of an HTTP/1.x connection's read
// chain: it decodes wire bytes into HttpRequestPacket/HttpContent
// values, buffers the body, dispatches to Registry once the request is
// complete, then serializes and writes the response itself. Unlike a
// decode-only filter it never forwards a message further up the chain;
// it is meant to sit last.
//
// One CodecFilter belongs to exactly one connection: NewChain must
// construct a fresh instance per connection, the same way it must for
// Decoder itself.
type CodecFilter struct {
	filter.BaseFilter

	Registry HandlerRegistry
	Encoding *httpenc.Registry

	dec *Decoder
	enc *Encoder

	req  *HttpRequestPacket
	body bytes.Buffer
}

// NewCodecFilter returns a CodecFilter enforcing limits and dispatching
// through registry. encoding may be nil to disable response compression.
func NewCodecFilter(limits Limits, registry HandlerRegistry, encoding *httpenc.Registry) *CodecFilter {
	return &CodecFilter{
		Registry: registry,
		Encoding: encoding,
		dec:      NewDecoder(limits),
		enc:      NewEncoder(),
	}
}

func (f *CodecFilter) HandleRead(ctx *filter.Context) (filter.NextAction, error) {
	buf, ok := ctx.Message.(buffer.Buffer)
	if !ok {
		return filter.Invoke(), nil
	}

	msgs, err := f.dec.Decode(buf)
	if err != nil {
		return filter.Stop(), err
	}

	for _, msg := range msgs {
		switch v := msg.(type) {
		case *HttpRequestPacket:
			f.req = v
			f.body.Reset()
			f.maybeSendContinue(ctx, v)
			if f.shouldSkipBody(v) {
				tooLarge := f.dec.State().BytesRemaining > f.dec.limits.MaxPayloadRemainderToSkip
				f.dec.SkipRemainder()
				f.respond(ctx, tooLarge)
			}
		case *HttpContent:
			f.body.Write(v.Data)
			if v.Last {
				f.respond(ctx, false)
			}
		}
	}
	return filter.Stop(), nil
}

// maybeSendContinue writes the interim "100 Continue" response before
// the body declared by req is ever read, as RFC 7231 §5.1.1 requires
// for a request carrying "Expect: 100-continue". It's skipped when
// req declares no body at all (nothing would be gated on a Continue)
// and when Registry already has no handler for the URI, so a request
// that's going to be answered with 404 anyway never prompts a client
// to send a body nobody will read.
func (f *CodecFilter) maybeSendContinue(ctx *filter.Context, req *HttpRequestPacket) {
	if !req.ExpectContinue || (req.ContentLength <= 0 && !req.Chunked) {
		return
	}
	if f.Registry != nil {
		if _, ok := f.Registry.Resolve(req.URI); !ok {
			return
		}
	}
	_ = ctx.Conn.Write([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
}

// shouldSkipBody reports whether req is headed for a response no
// handler will ever read a body for (nothing registered at its URI),
// so the decoder should discard the declared body via SkipRemainder
// instead of CodecFilter buffering all of it just to throw it away.
func (f *CodecFilter) shouldSkipBody(req *HttpRequestPacket) bool {
	if req.ContentLength <= 0 || req.Chunked || f.Registry == nil {
		return false
	}
	_, ok := f.Registry.Resolve(req.URI)
	return !ok
}

// respond dispatches the buffered request and writes the response.
// forceClose overrides the request's own keep-alive preference, for
// the case a declared body was too large for the decoder's
// maxPayloadRemainderToSkip policy to swallow: the connection can't be
// trusted to resync on the next request line, so it must close instead.
func (f *CodecFilter) respond(ctx *filter.Context, forceClose bool) {
	if f.req == nil {
		return
	}
	req := f.req
	f.req = nil
	body := append([]byte(nil), f.body.Bytes()...)

	resp, respBody := Dispatch(f.Registry, f.Encoding, req, body)
	keepAlive := req.KeepAlive() && !forceClose
	if !keepAlive {
		resp.Header.Set("Connection", "close")
	}

	var out bytes.Buffer
	out.Write(f.enc.EncodeHeader(resp))
	if len(respBody) > 0 {
		out.Write(f.enc.EncodeContent(&HttpContent{Data: respBody, Last: true}))
	} else if resp.Chunked {
		out.Write(f.enc.EncodeContent(&HttpContent{Last: true}))
	}

	if err := ctx.Conn.Write(out.Bytes()); err != nil {
		return
	}
	if !keepAlive {
		_ = ctx.Conn.Close()
	}
}
