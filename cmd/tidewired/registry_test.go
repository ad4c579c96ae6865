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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewire/tidewire/protocol/http1"
)

func namedHandler(name string) funcHandler {
	return func(req *http1.HttpRequestPacket, body []byte) (*http1.HttpResponsePacket, []byte) {
		return http1.NewResponse(200, ""), []byte(name)
	}
}

func TestMuxRegistryLongestMatchWins(t *testing.T) {
	reg := newMuxRegistry()
	reg.Register("", "/", namedHandler("root"))
	reg.Register("", "/api", namedHandler("api"))
	reg.Register("", "/api/v1", namedHandler("api-v1"))
	reg.Build()

	h, ok := reg.Resolve("/api/v1/widgets")
	require.True(t, ok)
	_, body := h.Service(nil, nil)
	assert.Equal(t, "api-v1", string(body))

	h, ok = reg.Resolve("/api/other")
	require.True(t, ok)
	_, body = h.Service(nil, nil)
	assert.Equal(t, "api", string(body))

	h, ok = reg.Resolve("/unregistered")
	require.True(t, ok)
	_, body = h.Service(nil, nil)
	assert.Equal(t, "root", string(body))
}

func TestMuxRegistryNoMatch(t *testing.T) {
	reg := newMuxRegistry()
	reg.Register("", "/api", namedHandler("api"))
	reg.Build()

	_, ok := reg.Resolve("/elsewhere")
	assert.False(t, ok)
}
