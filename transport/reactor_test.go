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

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestReactorSerializesPerConnectionJobs(t *testing.T) {
	r := newReactor(4, 16)
	id := uuid.New()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		i := i
		r.Submit(id, func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i, v := range order {
		assert.Equal(t, i, v, "jobs for the same connection id must run in submission order")
	}
}

func TestReactorShardForIsStable(t *testing.T) {
	r := newReactor(8, 16)
	id := uuid.New()
	first := r.shardFor(id)
	for i := 0; i < 10; i++ {
		assert.True(t, first == r.shardFor(id), "the same connection id must always hash to the same shard")
	}
}
