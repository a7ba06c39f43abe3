package wasmi

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	goruntime "runtime"

	"github.com/wasmi-labs/wasmi-sub007/internal/compilationcache"
	"github.com/wasmi-labs/wasmi-sub007/internal/version"
)

// Cache holds translated functions across calls of CompileModule, and across processes when
// backed by a directory.
//
// A Cache is safe for concurrent use. Entries are keyed by the function body, the module
// information it refers to and the RuntimeConfig, so one Cache can serve any configuration.
type Cache interface {
	cache() compilationcache.Cache
}

// NewCache returns a new Cache. With an empty dir, entries are kept in memory. Otherwise they
// are persisted into a version-specific sub-directory of dir, which is created if needed.
//
// Note: The embedder must safeguard this directory from external changes. Corrupted entries
// are detected and discarded, but an entry rewritten to other valid code is not.
//
// Usage:
//
//	cache, err := wasmi.NewCache("/home/me/.cache/wasmi")
//	cfg := wasmi.NewRuntimeConfig().WithCache(cache)
func NewCache(dir string) (Cache, error) {
	if dir == "" {
		return &cacheImpl{c: compilationcache.NewMemoryCache()}, nil
	}
	return newFileCache(dir, version.GetVersion())
}

func newFileCache(dir, wasmiVersion string) (*cacheImpl, error) {
	// Resolve a potentially relative directory into an absolute one.
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	// Ensure the user-supplied directory.
	if err = mkdir(dir); err != nil {
		return nil, err
	}

	// Create a version-specific directory to avoid conflicts.
	dirname := path.Join(dir, "wasmi-"+wasmiVersion+"-"+goruntime.GOARCH+"-"+goruntime.GOOS)
	if err = mkdir(dirname); err != nil {
		return nil, err
	}
	return &cacheImpl{c: compilationcache.NewFileCache(dirname), dir: dirname}, nil
}

// cacheImpl implements Cache interface.
type cacheImpl struct {
	c compilationcache.Cache
	// dir is the directory of a file cache, empty for a memory cache.
	dir string
}

func (c *cacheImpl) cache() compilationcache.Cache {
	return c.c
}

func mkdir(dirname string) error {
	if st, err := os.Stat(dirname); errors.Is(err, os.ErrNotExist) {
		// If the directory not found, create the cache dir.
		if err = os.MkdirAll(dirname, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %v", dirname, err)
		}
	} else if err != nil {
		return err
	} else if !st.IsDir() {
		return fmt.Errorf("%s is not dir", dirname)
	}
	return nil
}
