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

package transport

// Metrics is the contract boundary the reactor reports through. Core
// code never imports a metrics backend directly; cmd/tidewired supplies
// an implementation (the Prometheus adapter in package metrics) and
// hands it to Transport via Options.Metrics.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	BytesRead(n int)
	BytesWritten(n int)
	ParseError()
}

// NopMetrics discards every observation. It is the default when Options
// doesn't supply one, so Transport never has to nil-check Metrics.
type NopMetrics struct{}

func (NopMetrics) ConnectionOpened() {}
func (NopMetrics) ConnectionClosed() {}
func (NopMetrics) BytesRead(int)     {}
func (NopMetrics) BytesWritten(int)  {}
func (NopMetrics) ParseError()       {}

var _ Metrics = NopMetrics{}
