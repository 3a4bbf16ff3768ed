// Package sync provides fine-grained locking helpers for per-record
// serialization without a global lock.
package sync

import "sync"

// ShardedMutex distributes locks across N shards keyed by a hash of the
// resource key. Distinct claims almost always land on different shards, so
// throughput stays high while operations on the same claim are mutually
// exclusive.
type ShardedMutex struct {
	shards [32]sync.Mutex
}

// NewShardedMutex creates a ShardedMutex with 32 shards.
func NewShardedMutex() *ShardedMutex {
	return &ShardedMutex{}
}

// Lock acquires the lock for the given key's shard.
// Empty keys default to shard 0.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the lock for the given key's shard.
func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	var h uint32
	for i := 0; i < len(key); i++ {
		h = h*31 + uint32(key[i])
	}
	return int(h % uint32(len(m.shards)))
}
