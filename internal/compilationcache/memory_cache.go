package compilationcache

import (
	"bytes"
	"io"
	"sync"
)

// NewMemoryCache returns a new Cache keeping entries in memory for the lifetime of the process.
func NewMemoryCache() Cache {
	return newMemoryCache()
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[Key][]byte{}}
}

// memoryCache keeps compiled functions in a map.
type memoryCache struct {
	mux     sync.RWMutex
	entries map[Key][]byte
}

func (mc *memoryCache) Get(key Key) (content io.ReadCloser, ok bool, err error) {
	mc.mux.RLock()
	defer mc.mux.RUnlock()
	b, ok := mc.entries[key]
	if !ok {
		return nil, false, nil
	}
	return io.NopCloser(bytes.NewReader(b)), true, nil
}

func (mc *memoryCache) Add(key Key, content io.Reader) (err error) {
	b, err := io.ReadAll(content)
	if err != nil {
		return
	}
	mc.mux.Lock()
	defer mc.mux.Unlock()
	mc.entries[key] = b
	return
}

func (mc *memoryCache) Delete(key Key) (err error) {
	mc.mux.Lock()
	defer mc.mux.Unlock()
	delete(mc.entries, key)
	return
}
