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

package common

const (
	// App is the process name metrics and log namespaces are tagged
	// with.
	App = "tidewire"

	// Version is the application version.
	Version = "v0.0.1"

	// ReadWriteBlockSize is the default buffer allocation size for
	// connection read/write scratch space. A full TCP segment can run
	// up to 64K, but sizing every buffer to the worst case wastes
	// memory across many idle connections, so reads are chunked at this
	// size instead.
	ReadWriteBlockSize = 4096
)
