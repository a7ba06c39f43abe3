// Package wasmi translates WebAssembly modules into register machine bytecode.
//
// The entry points are CompileModule and CompileBinary, configured with a RuntimeConfig:
//
//	cfg := wasmi.NewRuntimeConfig().WithFuelMetering(true)
//	funcs, err := wasmi.CompileBinary(ctx, cfg, wasmBytes)
package wasmi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/wasmi-labs/wasmi-sub007/internal/compilationcache"
	"github.com/wasmi-labs/wasmi-sub007/internal/version"
	"github.com/wasmi-labs/wasmi-sub007/wasm"
	wasmbinary "github.com/wasmi-labs/wasmi-sub007/wasm/binary"
	"github.com/wasmi-labs/wasmi-sub007/wasm/translator"
)

// CompileBinary decodes a module in the binary format and translates all of its defined functions.
// See CompileModule.
func CompileBinary(ctx context.Context, cfg *RuntimeConfig, source []byte) ([]*translator.CompiledFunc, error) {
	m, err := wasmbinary.DecodeModule(source)
	if err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	return CompileModule(ctx, cfg, m)
}

// CompileModule translates every function defined in m, concurrently. The result is indexed
// like m.CodeSection, and does not depend on the number of workers.
//
// The first failure cancels the remaining work and is returned as a *translator.Error.
// A nil cfg is the same as NewRuntimeConfig.
func CompileModule(ctx context.Context, cfg *RuntimeConfig, m *wasm.Module) ([]*translator.CompiledFunc, error) {
	if cfg == nil {
		cfg = NewRuntimeConfig()
	}
	if len(m.FunctionSection) != len(m.CodeSection) {
		return nil, fmt.Errorf("function and code section have inconsistent lengths: %d != %d",
			len(m.FunctionSection), len(m.CodeSection))
	}
	logger := cfg.getLogger()

	funcs := make([]*translator.CompiledFunc, len(m.CodeSection))
	if len(funcs) == 0 {
		return funcs, nil
	}

	c := &compilation{cfg: cfg, m: m}
	if cfg.cache != nil {
		c.cache = cfg.cache.cache()
		c.keyPrefix = moduleKeyPrefix(cfg, m)
	}

	workers := cfg.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(funcs) {
		workers = len(funcs)
	}

	var next atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			// Each worker reuses one translator to keep its buffers.
			tr := translator.New(cfg.translatorConfig(), m)
			for {
				i := int(next.Add(1) - 1)
				if i >= len(funcs) {
					return nil
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				cf, err := c.compileFunc(tr, i)
				if err != nil {
					return err
				}
				funcs[i] = cf
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Debugf("compiled %d functions with %d workers: %d cache hits, %d cache misses",
		len(funcs), workers, c.hits.Load(), c.misses.Load())
	return funcs, nil
}

// compilation is the state shared by the workers of one CompileModule call.
type compilation struct {
	cfg       *RuntimeConfig
	m         *wasm.Module
	cache     compilationcache.Cache
	keyPrefix []byte

	hits, misses atomic.Uint64
}

func (c *compilation) compileFunc(tr *translator.Translator, i int) (*translator.CompiledFunc, error) {
	funcIndex := c.m.DefinedFunctionIndex(i)
	body := c.m.CodeSection[i]
	if c.cache == nil {
		return tr.Translate(funcIndex, body)
	}

	key := c.funcKey(funcIndex, body)
	if cf, ok := c.getCached(key, funcIndex); ok {
		c.hits.Add(1)
		return cf, nil
	}
	c.misses.Add(1)

	cf, err := tr.Translate(funcIndex, body)
	if err != nil {
		return nil, err
	}
	data, err := cf.MarshalBinary()
	if err != nil {
		return nil, err
	}
	// A failure to store only costs a later translation.
	if err = c.cache.Add(key, bytes.NewReader(data)); err != nil {
		c.cfg.getLogger().Warningf("cache function[%d]: %v", funcIndex, err)
	}
	return cf, nil
}

// getCached returns the cached translation for key. Entries which cannot be read are deleted.
func (c *compilation) getCached(key compilationcache.Key, funcIndex wasm.Index) (*translator.CompiledFunc, bool) {
	logger := c.cfg.getLogger()
	content, ok, err := c.cache.Get(key)
	if err != nil {
		logger.Warningf("read cached function[%d]: %v", funcIndex, err)
		return nil, false
	} else if !ok {
		return nil, false
	}

	data, err := io.ReadAll(content)
	_ = content.Close()
	cf := &translator.CompiledFunc{}
	if err == nil {
		err = cf.UnmarshalBinary(data)
	}
	if err != nil {
		logger.Warningf("discard cached function[%d]: %v", funcIndex, err)
		if err = c.cache.Delete(key); err != nil {
			logger.Warningf("delete cached function[%d]: %v", funcIndex, err)
		}
		return nil, false
	}
	logger.Debugf("cache hit for function[%d]", funcIndex)
	return cf, true
}

func (c *compilation) funcKey(funcIndex wasm.Index, body []byte) compilationcache.Key {
	h := sha256.New()
	h.Write(c.keyPrefix)
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], funcIndex)
	h.Write(idx[:])
	h.Write(body)

	var key compilationcache.Key
	h.Sum(key[:0])
	return key
}

// moduleKeyPrefix returns what every cache key of m shares: the version, the settings and the
// module information function bodies refer to. Callee handles are part of the translated code,
// so the handle base is too.
func moduleKeyPrefix(cfg *RuntimeConfig, m *wasm.Module) []byte {
	header := *m
	header.CodeSection = nil

	h := sha256.New()
	h.Write([]byte(version.GetVersion()))
	fp := cfg.fingerprint()
	h.Write(fp[:])
	h.Write(wasmbinary.EncodeModule(&header))
	var base [8]byte
	binary.LittleEndian.PutUint64(base[:], uint64(m.HandleBase))
	h.Write(base[:])
	return h.Sum(nil)
}
