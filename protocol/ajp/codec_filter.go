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
	"bytes"

	"github.com/tidewire/tidewire/filter"
	"github.com/tidewire/tidewire/internal/buffer"
	"github.com/tidewire/tidewire/protocol/http1"
	"github.com/tidewire/tidewire/protocol/http1/httpenc"
)

// CodecFilter is the terminal filter of an AJP/1.3 connection's read
// chain. It mirrors http1.CodecFilter: decode to completion, bridge into
// the shared HttpRequestPacket/HttpContent shapes, dispatch through the
// same HandlerRegistry contract, then encode the response back into
// AJP's own SEND_HEADERS/SEND_BODY_CHUNK/END_RESPONSE framing.
type CodecFilter struct {
	filter.BaseFilter

	Registry HandlerRegistry
	Encoding *httpenc.Registry

	dec *Decoder
	enc *Encoder

	req  *http1.HttpRequestPacket
	body bytes.Buffer
}

// HandlerRegistry is an alias of http1's contract so callers outside
// this package don't need to import http1 solely to construct one.
type HandlerRegistry = http1.HandlerRegistry

// NewCodecFilter returns a CodecFilter dispatching through registry.
// encoding may be nil to disable response compression.
func NewCodecFilter(registry HandlerRegistry, encoding *httpenc.Registry) *CodecFilter {
	return &CodecFilter{
		Registry: registry,
		Encoding: encoding,
		dec:      NewDecoder(),
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
		case *ForwardRequest:
			f.req = ToHTTPRequest(v)
			f.body.Reset()
			if v.ContentLength <= 0 {
				// No body declared: the decoder never emits a DataChunk
				// for this request, so nothing else will trigger dispatch.
				f.respond(ctx)
			}
		case *DataChunk:
			content := ToHTTPContent(v)
			f.body.Write(content.Data)
			// The decoder stops expecting body packets once Content-Length
			// bytes have arrived, so a complete body ends the request even
			// without a trailing empty chunk.
			if content.Last || (f.req != nil && int64(f.body.Len()) >= f.req.ContentLength) {
				f.respond(ctx)
			}
		case *Ping:
			_ = ctx.Conn.Write(frame(magicServer, []byte{PacketCPong}))
		}
	}
	return filter.Stop(), nil
}

func (f *CodecFilter) respond(ctx *filter.Context) {
	if f.req == nil {
		return
	}
	req := f.req
	f.req = nil
	body := append([]byte(nil), f.body.Bytes()...)

	resp, respBody := http1.Dispatch(f.Registry, f.Encoding, req, body)

	if err := ctx.Conn.Write(f.enc.EncodeHeaders(resp)); err != nil {
		return
	}
	for _, chunk := range f.enc.EncodeBody(respBody) {
		if err := ctx.Conn.Write(chunk); err != nil {
			return
		}
	}
	keepAlive := req.KeepAlive()
	if err := ctx.Conn.Write(f.enc.EncodeEndResponse(keepAlive)); err != nil {
		return
	}
	if !keepAlive {
		_ = ctx.Conn.Close()
	}
}
