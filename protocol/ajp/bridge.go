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

import "github.com/tidewire/tidewire/protocol/http1"

// ToHTTPRequest adapts a decoded FORWARD_REQUEST into the same
// HttpRequestPacket shape the HTTP/1.x decoder produces, so filters
// above the AJP layer never need to know which wire protocol a
// connection actually speaks.
func ToHTTPRequest(fr *ForwardRequest) *http1.HttpRequestPacket {
	proto, ok := http1.ParseProtocol(fr.Protocol)
	if !ok {
		proto = http1.HTTP11
	}

	req := &http1.HttpRequestPacket{
		Method:        fr.Method,
		URI:           fr.RequestURI,
		Protocol:      proto,
		ContentLength: fr.ContentLength,
		RemoteAddress: fr.RemoteAddr,
		ServerName:    fr.ServerName,
		ServerPort:    fr.ServerPort,
		Secure:        fr.IsSSL,
	}

	for _, h := range fr.Headers {
		req.Header.Add(h.Name, h.Value)
	}
	if fr.QueryString != "" {
		req.Query = fr.QueryString
	}
	if fr.RemoteUser != "" {
		req.Header.Set("X-AJP-Remote-User", fr.RemoteUser)
	}
	if fr.AuthType != "" {
		req.Header.Set("X-AJP-Auth-Type", fr.AuthType)
	}
	if fr.Route != "" {
		req.Header.Set("X-AJP-Route", fr.Route)
	}
	return req
}

// ToHTTPContent adapts a request-body DataChunk into an HttpContent. An
// empty chunk, AJP's end-of-body signal, becomes the terminal Last
// message; a chunk that completes Content-Length is not marked Last here.
func ToHTTPContent(c *DataChunk) *http1.HttpContent {
	if len(c.Data) == 0 {
		return &http1.HttpContent{Last: true}
	}
	return &http1.HttpContent{Data: c.Data}
}
