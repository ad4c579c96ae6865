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

// Limits bounds the wire elements the streaming parser will accumulate
// before giving up, so a client cannot force unbounded buffering with a
// request line or header that never terminates.
type Limits struct {
	MaxRequestLineBytes      int
	MaxHeaderLineBytes       int
	MaxHeaderCount           int
	MaxChunkSizeLineBytes    int
	MaxTrailerCount          int
	// MaxPayloadRemainderToSkip bounds how much of a body the server
	// will swallow (rather than closing the connection) when no handler
	// resolves for the request and its declared body is discarded
	// unread, per spec.md's keep-alive policy.
	MaxPayloadRemainderToSkip int64
}

// DefaultLimits matches the values a Grizzly-style server ships with out
// of the box.
func DefaultLimits() Limits {
	return Limits{
		MaxRequestLineBytes:       8192,
		MaxHeaderLineBytes:        8192,
		MaxHeaderCount:            100,
		MaxChunkSizeLineBytes:     64,
		MaxTrailerCount:           32,
		MaxPayloadRemainderToSkip: 2 << 20,
	}
}
