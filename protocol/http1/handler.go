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

import "github.com/tidewire/tidewire/protocol/http1/httpenc"

// HttpHandler is the application-facing collaborator a codec filter
// dispatches a fully-buffered request to once its body has streamed in
// completely. This package only depends on the contract; it never
// constructs a handler itself.
type HttpHandler interface {
	Service(req *HttpRequestPacket, body []byte) (*HttpResponsePacket, []byte)
}

// HandlerRegistry resolves a request URI to the handler registered for
// it. Resolution is longest-match on (contextPath, urlPattern), ties
// broken by registration order; the registry implementation itself
// (backed by gorilla/mux) lives with the server that owns it, not here.
type HandlerRegistry interface {
	Resolve(uri string) (HttpHandler, bool)
}

// notFoundHandler answers any unresolved URI with a plain 404.
type notFoundHandler struct{}

func (notFoundHandler) Service(*HttpRequestPacket, []byte) (*HttpResponsePacket, []byte) {
	return NewResponse(404, "Not Found"), nil
}

// Dispatch resolves req against registry and runs its handler, then
// applies the framing rules every codec shares: a request body is
// decoded against its own Content-Encoding before the handler ever sees
// it, HEAD and 1xx/204/304 responses never carry a body regardless of
// what the handler wrote, and a non-empty response body is compressed
// when a registered coding accepts the request's Accept-Encoding and
// the handler left Content-Encoding unset; the response Content-Type is
// not consulted.
func Dispatch(registry HandlerRegistry, enc *httpenc.Registry, req *HttpRequestPacket, body []byte) (*HttpResponsePacket, []byte) {
	if enc != nil {
		if ce := req.Header.Get("Content-Encoding"); ce != "" {
			decoded, err := enc.DecodeBody(ce, body)
			if err != nil {
				resp := NewResponse(400, "Bad Request")
				resp.ContentLength = 0
				return resp, nil
			}
			body = decoded
		}
	}

	h, ok := registry.Resolve(req.URI)
	if !ok {
		h = notFoundHandler{}
	}

	resp, respBody := h.Service(req, body)
	if resp == nil {
		resp = NewResponse(200, "")
	}

	if NoBodyExpected(req.Method, resp.Status) {
		respBody = nil
	} else if enc != nil && len(respBody) > 0 && resp.Header.Get("Content-Encoding") == "" {
		if coding, ok := enc.WantEncode(req.Header.Get("Accept-Encoding")); ok {
			if encoded, err := coding.Encode(respBody); err == nil {
				respBody = encoded
				resp.Header.Set("Content-Encoding", coding.Name())
			}
		}
	}

	resp.ContentLength = int64(len(respBody))
	return resp, respBody
}
