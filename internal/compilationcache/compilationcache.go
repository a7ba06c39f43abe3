// Package compilationcache stores serialized compiled functions across processes.
package compilationcache

import (
	"crypto/sha256"
	"io"
)

// Cache is the interface for caches of translated functions. Entries are keyed by a hash of
// everything the translation depends on, so a Key never maps to two different contents.
//
// Since these methods are concurrently accessed, the implementations must be Goroutine-safe.
//
// See NewFileCache for the example implementation.
type Cache interface {
	// Get returns the content stored for key. It returns ok=false with err=nil when there
	// is no entry. content.Close is called by the caller of Get.
	//
	// Note: the content is validated by the caller when it is decoded, so a corrupted entry
	// results in an error rather than invalid code.
	Get(key Key) (content io.ReadCloser, ok bool, err error)
	// Add stores content for key. The content must be returned as-is by Get.
	Add(key Key, content io.Reader) (err error)
	// Delete purges the entry for key, which is not an error if it doesn't exist.
	// Callers delete entries which Get returned but which failed to decode.
	Delete(key Key) (err error)
}

// Key represents the 256-bit unique identifier assigned to each cache content.
type Key = [sha256.Size]byte
