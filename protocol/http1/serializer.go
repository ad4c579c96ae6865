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
	"strconv"
	"strings"
	"time"
)

// canonicalFirst lists the headers the serializer writes, in this
// order, when present, right after Date and the framing header
// (Transfer-Encoding or Content-Length) and before falling through to
// whatever else the caller set on Header. Matching a real server's wire output (rather
// than emitting headers in map iteration order) matters for clients
// and intermediaries that peek at only the first few header lines.
var canonicalFirst = []string{"Content-Type"}

// rfc7231Date is the fixed-width HTTP-date format (RFC 7231 §7.1.1.1),
// always rendered in GMT regardless of server locale.
const rfc7231Date = "Mon, 02 Jan 2006 15:04:05 GMT"

// Encoder serializes HttpResponsePacket/HttpContent values to wire
// bytes. It is stateless aside from remembering whether the response in
// progress is chunked, so one Encoder can be reused for every response
// on a keep-alive connection.
type Encoder struct {
	chunked bool
}

// NewEncoder returns a ready-to-use Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// EncodeHeader serializes the status line and headers. A response
// without a known Content-Length and not already marked Chunked is
// switched to chunked transfer encoding on HTTP/1.1, matching
// spec.md's response serialization rule; HTTP/1.0 responses with an
// unknown length instead fall back to a close-delimited body, so the
// caller must close the connection after the last EncodeContent.
func (e *Encoder) EncodeHeader(resp *HttpResponsePacket) []byte {
	if resp.ContentLength < 0 && !resp.Chunked && resp.Protocol == HTTP11 {
		resp.Chunked = true
	}
	e.chunked = resp.Chunked

	var b strings.Builder
	reason := resp.Reason
	if reason == "" {
		reason = statusText(resp.Status)
	}
	b.WriteString(resp.Protocol.String())
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(resp.Status))
	b.WriteByte(' ')
	b.WriteString(reason)
	b.WriteString("\r\n")

	written := make(map[string]bool, len(canonicalFirst)+2)

	if v := resp.Header.Get("Date"); v != "" {
		writeHeaderLine(&b, "Date", v)
	} else {
		writeHeaderLine(&b, "Date", time.Now().UTC().Format(rfc7231Date))
	}
	written["date"] = true

	if resp.Chunked {
		writeHeaderLine(&b, "Transfer-Encoding", "chunked")
	} else if resp.ContentLength >= 0 {
		writeHeaderLine(&b, "Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	written["transfer-encoding"] = true
	written["content-length"] = true

	for _, name := range canonicalFirst {
		if v := resp.Header.Get(name); v != "" {
			writeHeaderLine(&b, name, v)
			written[strings.ToLower(name)] = true
		}
	}

	for _, h := range resp.Header.All() {
		key := strings.ToLower(h.Name)
		if written[key] {
			continue
		}
		writeHeaderLine(&b, h.Name, h.Value)
	}

	b.WriteString("\r\n")
	return []byte(b.String())
}

func writeHeaderLine(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}

// EncodeContent serializes one body chunk, applying chunked transfer
// framing when the response in progress was switched to chunked.
func (e *Encoder) EncodeContent(content *HttpContent) []byte {
	if !e.chunked {
		return content.Data
	}

	if content.Last {
		var b strings.Builder
		b.WriteString("0\r\n")
		for _, h := range content.Trailer.All() {
			writeHeaderLine(&b, h.Name, h.Value)
		}
		b.WriteString("\r\n")
		return []byte(b.String())
	}

	var b strings.Builder
	b.WriteString(strconv.FormatInt(int64(len(content.Data)), 16))
	b.WriteString("\r\n")
	out := make([]byte, 0, b.Len()+len(content.Data)+2)
	out = append(out, []byte(b.String())...)
	out = append(out, content.Data...)
	out = append(out, '\r', '\n')
	return out
}

// statusText returns the reason phrase for the common status codes this
// server itself produces; anything else is left blank rather than
// hand-maintaining the entire IANA registry.
func statusText(status int) string {
	switch status {
	case 100:
		return "Continue"
	case 200:
		return "OK"
	case 204:
		return "No Content"
	case 206:
		return "Partial Content"
	case 301:
		return "Moved Permanently"
	case 302:
		return "Found"
	case 304:
		return "Not Modified"
	case 400:
		return "Bad Request"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 408:
		return "Request Timeout"
	case 411:
		return "Length Required"
	case 413:
		return "Payload Too Large"
	case 431:
		return "Request Header Fields Too Large"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 503:
		return "Service Unavailable"
	default:
		return ""
	}
}
