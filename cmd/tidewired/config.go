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
	"time"

	"github.com/tidewire/tidewire/logger"
	"github.com/tidewire/tidewire/protocol/http1"
)

// serverConfig is the confengine-decoded shape of the option set
// spec.md §6 enumerates; confengine only exists to get it here from a
// YAML file. The size limits feed http1.Limits, the buffer, queue, shard
// and keep-alive settings feed transport.Options, CompressionLevel feeds
// httpenc.NewGzip, and Listen, Proto and Logger are used by main itself.
// AllowPayloadForUndefinedMethods, MaxKeepAliveRequests, ChunkingEnabled
// and CompressionStrategy are decoded but not read by any component.
type serverConfig struct {
	Listen string `config:"listen"`
	Proto  string `config:"proto"` // "http" or "ajp"

	MaxRequestLineSize              int   `config:"maxRequestLineSize"`
	MaxRequestHeaderSize            int   `config:"maxRequestHeaderSize"`
	MaxPayloadRemainderToSkip       int64 `config:"maxPayloadRemainderToSkip"`
	AllowPayloadForUndefinedMethods bool  `config:"allowPayloadForUndefinedMethods"`

	KeepAliveTimeoutSeconds int  `config:"keepAliveTimeout"`
	MaxKeepAliveRequests    int  `config:"maxKeepAliveRequests"`
	ChunkingEnabled         bool `config:"chunkingEnabled"`

	CompressionLevel    int    `config:"compressionLevel"`
	CompressionStrategy string `config:"compressionStrategy"`

	ReadBufferSize  int `config:"bufferSizes"`
	WriteQueueDepth int `config:"writeQueueDepth"`
	ReactorShards   int `config:"reactorShards"`

	Logger logger.Options `config:"logger"`
}

// defaultServerConfig mirrors http1.DefaultLimits and transport's own
// zero-value fallbacks, so a config file only needs to override what it
// cares about.
func defaultServerConfig() serverConfig {
	return serverConfig{
		Listen:                    ":8080",
		Proto:                     "http",
		MaxRequestLineSize:        8192,
		MaxRequestHeaderSize:      8192,
		MaxPayloadRemainderToSkip: 2 << 20,
		KeepAliveTimeoutSeconds:   30,
		MaxKeepAliveRequests:      100,
		ChunkingEnabled:           true,
		CompressionLevel:          6,
		CompressionStrategy:       "default",
		ReadBufferSize:            4096,
		WriteQueueDepth:           64,
		Logger:                    logger.Options{Stdout: true, Level: "info"},
	}
}

func (c serverConfig) httpLimits() http1.Limits {
	return http1.Limits{
		MaxRequestLineBytes:       c.MaxRequestLineSize,
		MaxHeaderLineBytes:        c.MaxRequestHeaderSize,
		MaxHeaderCount:            100,
		MaxChunkSizeLineBytes:     64,
		MaxTrailerCount:           32,
		MaxPayloadRemainderToSkip: c.MaxPayloadRemainderToSkip,
	}
}

func (c serverConfig) keepAliveTimeout() time.Duration {
	return time.Duration(c.KeepAliveTimeoutSeconds) * time.Second
}
