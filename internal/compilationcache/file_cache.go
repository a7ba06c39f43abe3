package compilationcache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
)

// NewFileCache returns a new Cache writing entries into dir. The directory is created
// on the first Add.
func NewFileCache(dir string) Cache {
	return newFileCache(dir)
}

func newFileCache(dir string) *fileCache {
	return &fileCache{dirPath: dir}
}

// fileCache persists compiled functions into dirPath.
//
// Note: this can be expanded to do binary signing/verification, set TTL on each entry, etc.
type fileCache struct {
	dirPath string
	// mux guards entries being read against concurrent writes and deletes.
	mux sync.RWMutex
}

// fileReadCloser releases the read lock of the cache when closed.
type fileReadCloser struct {
	*os.File
	fc *fileCache
}

func (f *fileCache) path(key Key) string {
	return path.Join(f.dirPath, hex.EncodeToString(key[:]))
}

func (f *fileCache) Get(key Key) (content io.ReadCloser, ok bool, err error) {
	f.mux.RLock()
	unlock := f.mux.RUnlock
	defer func() {
		if unlock != nil {
			unlock()
		}
	}()

	file, err := os.Open(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	// Ownership of the lock passes to the returned reader.
	unlock = nil
	return &fileReadCloser{File: file, fc: f}, true, nil
}

// Close implements io.Closer.
func (f *fileReadCloser) Close() (err error) {
	defer f.fc.mux.RUnlock()
	err = f.File.Close()
	return
}

func (f *fileCache) Add(key Key, content io.Reader) (err error) {
	f.mux.Lock()
	defer f.mux.Unlock()

	if err = mkdir(f.dirPath); err != nil {
		return
	}

	// Write to a temporary file first so a reader never sees a partial entry.
	p := f.path(key)
	tmp := p + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return
	}
	if _, err = io.Copy(file, content); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return
	}
	if err = file.Close(); err != nil {
		_ = os.Remove(tmp)
		return
	}
	return os.Rename(tmp, p)
}

func (f *fileCache) Delete(key Key) (err error) {
	f.mux.Lock()
	defer f.mux.Unlock()

	err = os.Remove(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	return
}

func mkdir(dirPath string) error {
	if st, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err = os.MkdirAll(dirPath, 0o700); err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else if !st.IsDir() {
		return fmt.Errorf("fileCache: expected dir at %s", dirPath)
	}
	return nil
}
