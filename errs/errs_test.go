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

package errs

import (
	"testing"

	goerrors "errors"

	"github.com/stretchr/testify/assert"
)

func TestNewAndKindOf(t *testing.T) {
	err := New(LimitExceeded, "header line too long: %d bytes", 9000)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, LimitExceeded, kind)
	assert.True(t, Is(err, LimitExceeded))
	assert.False(t, Is(err, ProtocolFormat))
}

func TestWrapPreservesChain(t *testing.T) {
	cause := goerrors.New("short read")
	err := Wrap(TransportIO, cause, "reading request line")
	assert.True(t, Is(err, TransportIO))
	assert.True(t, goerrors.Is(err, cause))
}

func TestKindOfUnknownError(t *testing.T) {
	_, ok := KindOf(goerrors.New("plain"))
	assert.False(t, ok)
}
