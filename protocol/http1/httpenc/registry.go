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

// Package httpenc implements the ContentEncoding sub-pipeline: a small
// registry of codecs keyed by name/alias, each able to decide from
// request or response headers whether it applies, plus the GZIP
// transform itself.
package httpenc

import (
	"strings"

	"github.com/tidewire/tidewire/errs"
)

// ContentEncoding names one wire content-coding and the predicates that
// decide when a filter should apply it.
type ContentEncoding interface {
	// Name is the canonical token this coding is advertised as, e.g.
	// "gzip".
	Name() string
	// Aliases lists additional tokens that should resolve to this
	// coding (e.g. "x-gzip").
	Aliases() []string
	// Decode transforms a fully received encoded payload back to plain
	// bytes, returning any bytes found past the end of the coding's own
	// framing (e.g. a second gzip member, or the start of the next
	// pipelined message) as remainder.
	Decode(encoded []byte) (plain, remainder []byte, err error)
	// Encode transforms plain bytes into this coding's wire form.
	Encode(plain []byte) ([]byte, error)
}

// Registry resolves content-coding tokens (from Content-Encoding or
// Accept-Encoding headers) to a ContentEncoding implementation.
type Registry struct {
	byToken map[string]ContentEncoding
}

// NewRegistry returns a Registry with the given codecs registered under
// their name and every alias.
func NewRegistry(codings ...ContentEncoding) *Registry {
	r := &Registry{byToken: make(map[string]ContentEncoding)}
	for _, c := range codings {
		r.Register(c)
	}
	return r
}

// Register adds c under its name and every alias, case-insensitively.
func (r *Registry) Register(c ContentEncoding) {
	r.byToken[strings.ToLower(c.Name())] = c
	for _, alias := range c.Aliases() {
		r.byToken[strings.ToLower(alias)] = c
	}
}

// Lookup resolves token (case-insensitively, whitespace-trimmed) to a
// registered ContentEncoding.
func (r *Registry) Lookup(token string) (ContentEncoding, bool) {
	c, ok := r.byToken[strings.ToLower(strings.TrimSpace(token))]
	return c, ok
}

// WantDecode reports whether header's Content-Encoding value names a
// registered coding, and returns it.
func (r *Registry) WantDecode(contentEncodingHeader string) (ContentEncoding, bool) {
	if contentEncodingHeader == "" {
		return nil, false
	}
	// Content-Encoding may list more than one coding; the innermost
	// (last applied, first to undo) is the rightmost token.
	tokens := strings.Split(contentEncodingHeader, ",")
	last := strings.TrimSpace(tokens[len(tokens)-1])
	return r.Lookup(last)
}

// DecodeBody reverses every content-coding named in a Content-Encoding
// header value against an already fully-received body, right-to-left:
// the rightmost token was applied last by whoever encoded the body, so
// it's the first one undone.
func (r *Registry) DecodeBody(contentEncodingHeader string, body []byte) ([]byte, error) {
	if contentEncodingHeader == "" || len(body) == 0 {
		return body, nil
	}
	tokens := strings.Split(contentEncodingHeader, ",")
	for i := len(tokens) - 1; i >= 0; i-- {
		token := strings.TrimSpace(tokens[i])
		if token == "" || strings.EqualFold(token, "identity") {
			continue
		}
		coding, ok := r.Lookup(token)
		if !ok {
			return nil, errs.New(errs.ProtocolFormat, "httpenc: unsupported content-coding %q", token)
		}
		plain, _, err := coding.Decode(body)
		if err != nil {
			return nil, err
		}
		body = plain
	}
	return body, nil
}

// WantEncode picks the first registered coding the client's
// Accept-Encoding header advertises, in the header's own preference
// order, skipping any coding explicitly disabled with "q=0".
func (r *Registry) WantEncode(acceptEncodingHeader string) (ContentEncoding, bool) {
	for _, raw := range strings.Split(acceptEncodingHeader, ",") {
		token, q := parseAcceptToken(raw)
		if q == 0 {
			continue
		}
		if c, ok := r.Lookup(token); ok {
			return c, true
		}
	}
	return nil, false
}

func parseAcceptToken(raw string) (token string, q float64) {
	q = 1
	parts := strings.Split(raw, ";")
	token = strings.TrimSpace(parts[0])
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "q=") {
			if p == "q=0" {
				q = 0
			}
		}
	}
	return token, q
}
