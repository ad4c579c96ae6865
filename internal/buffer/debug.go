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

//go:build tidewire_debug

package buffer

// debugBuild is true when the tidewire_debug build tag is set, enabling
// use-after-dispose panics per the spec.md 4.1 failure model. Disabled by
// default because the check adds a branch to every cursor operation.
const debugBuild = true
