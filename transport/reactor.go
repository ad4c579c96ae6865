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
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/tidewire/tidewire/internal/rescue"
)

// reactor is a fixed-size pool of worker goroutines that run filter
// chain passes. A connection's jobs always land on the same shard
// (picked by hashing its id), so its own read events are never run
// concurrently with each other even though many connections share the
// pool — this is what stands in for "all processing for a connection
// runs on its owning reactor thread" without pinning goroutines to OS
// threads.
//
// Socket I/O itself does not go through the reactor: each Connection
// owns a dedicated read goroutine blocked in the runtime netpoller and a
// dedicated write goroutine draining its own queue, so a slow filter
// chain pass never blocks another connection's raw read or write.
type reactor struct {
	shards []chan func()
}

func newReactor(numShards, queueDepth int) *reactor {
	if numShards < 1 {
		numShards = 1
	}
	r := &reactor{shards: make([]chan func(), numShards)}
	for i := range r.shards {
		ch := make(chan func(), queueDepth)
		r.shards[i] = ch
		go runShard(ch)
	}
	return r
}

func runShard(jobs <-chan func()) {
	for job := range jobs {
		runJob(job)
	}
}

// runJob recovers a panicking job so one bad connection's filter chain
// never takes its whole shard (and every other connection hashed to it)
// down with it.
func runJob(job func()) {
	defer rescue.HandleCrash()
	job()
}

// shardFor deterministically maps a connection id to one of the
// reactor's shards.
func (r *reactor) shardFor(id uuid.UUID) chan func() {
	h := xxhash.Sum64(id[:])
	return r.shards[h%uint64(len(r.shards))]
}

// Submit enqueues job onto the shard owned by id. It blocks if that
// shard's queue is full, providing natural back-pressure instead of an
// unbounded goroutine-per-event fan-out.
func (r *reactor) Submit(id uuid.UUID, job func()) {
	r.shardFor(id) <- job
}

// Close stops accepting new work. In-flight jobs already queued still
// run; callers must have already stopped producing new jobs for every
// connection before calling this.
func (r *reactor) Close() {
	for _, ch := range r.shards {
		close(ch)
	}
}
