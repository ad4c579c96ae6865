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

// Package rescue centralizes panic recovery for reactor goroutines: a
// connection's filter chain running a buggy or malicious input through
// a handler must not take the whole process down with it.
package rescue

import (
	"runtime"

	"github.com/tidewire/tidewire/logger"
)

// PanicCounter is called once per recovered panic. It defaults to a
// no-op; cmd/tidewired installs a Prometheus counter here at startup so
// that core code never imports prometheus directly.
var PanicCounter = func() {}

var PanicHandlers = []func(any){
	incPanicCounter,
	logPanic,
}

func incPanicCounter(_ any) {
	PanicCounter()
}

func logPanic(r any) {
	const size = 64 << 10
	stacktrace := make([]byte, size)
	stacktrace = stacktrace[:runtime.Stack(stacktrace, false)]
	if _, ok := r.(string); ok {
		logger.Errorf("Observed a panic: %s\n%s", r, stacktrace)
	} else {
		logger.Errorf("Observed a panic: %#v (%v)\n%s", r, r, stacktrace)
	}
}

// HandleCrash recovers a panic on the calling goroutine, running every
// registered PanicHandlers entry, then lets the goroutine return
// normally instead of propagating the panic.
func HandleCrash() {
	if r := recover(); r != nil {
		for _, fn := range PanicHandlers {
			fn(r)
		}
	}
}
