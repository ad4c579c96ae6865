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

package main

import (
	"net/http/httptest"
	"sort"

	"github.com/gorilla/mux"

	"github.com/tidewire/tidewire/protocol/http1"
)

// registration is one (contextPath, urlPattern) -> handler entry as
// spec.md's HttpHandler collaborator describes it, kept around long
// enough for muxRegistry to sort by specificity before it ever builds a
// *mux.Router.
type registration struct {
	pattern string
	order   int
	handler http1.HttpHandler
}

// muxRegistry implements http1.HandlerRegistry over gorilla/mux: the
// only place in this repository that dependency is used, mirroring the
// role it plays admin-side in the teacher's own binary. gorilla/mux
// matches routes in registration order rather than by specificity, so
// Build registers the longest patterns first — for the non-overlapping
// literal prefixes a demo server deals in, that is equivalent to the
// longest-match, ties-by-registration-order contract spec.md describes.
type muxRegistry struct {
	pending []registration
	router  *mux.Router
	byRoute map[*mux.Route]http1.HttpHandler
}

func newMuxRegistry() *muxRegistry {
	return &muxRegistry{byRoute: make(map[*mux.Route]http1.HttpHandler)}
}

// Register adds a handler for contextPath+urlPattern. Build must be
// called once every handler is registered and before the first Resolve.
func (m *muxRegistry) Register(contextPath, urlPattern string, h http1.HttpHandler) {
	m.pending = append(m.pending, registration{
		pattern: contextPath + urlPattern,
		order:   len(m.pending),
		handler: h,
	})
}

// Build compiles every pending registration into the underlying router,
// longest pattern first.
func (m *muxRegistry) Build() {
	sort.SliceStable(m.pending, func(i, j int) bool {
		if len(m.pending[i].pattern) != len(m.pending[j].pattern) {
			return len(m.pending[i].pattern) > len(m.pending[j].pattern)
		}
		return m.pending[i].order < m.pending[j].order
	})

	m.router = mux.NewRouter()
	for _, reg := range m.pending {
		route := m.router.PathPrefix(reg.pattern)
		m.byRoute[route] = reg.handler
	}
}

// Resolve implements http1.HandlerRegistry.
func (m *muxRegistry) Resolve(uri string) (http1.HttpHandler, bool) {
	req := httptest.NewRequest("GET", uri, nil)
	var match mux.RouteMatch
	if !m.router.Match(req, &match) || match.Route == nil {
		return nil, false
	}
	h, ok := m.byRoute[match.Route]
	return h, ok
}

// funcHandler adapts a plain function to http1.HttpHandler, the same
// convenience net/http's HandlerFunc provides for its own interface.
type funcHandler func(req *http1.HttpRequestPacket, body []byte) (*http1.HttpResponsePacket, []byte)

func (f funcHandler) Service(req *http1.HttpRequestPacket, body []byte) (*http1.HttpResponsePacket, []byte) {
	return f(req, body)
}
