package core

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// keyLocks serializes mutations of the same (bucket, key). Distinct keys
// share a stripe only on hash collision.
type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *keyLocks) lock(bucket string, key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(bucket))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key))

	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
