package wasmi_test

import (
	"context"
	"log"
	"os"

	wasmi "github.com/wasmi-labs/wasmi-sub007"
)

// This is a basic example of using the file system cache via wasmi.NewCache.
// The main goal is to show how it is configured.
func Example_compileCache() {
	// Prepare a cache directory.
	cacheDir, err := os.MkdirTemp("", "example")
	if err != nil {
		log.Panicln(err)
	}
	defer os.RemoveAll(cacheDir)

	ctx := context.Background()

	// Create a runtime config which shares a cache directory.
	cache, err := wasmi.NewCache(cacheDir)
	if err != nil {
		log.Panicln(err)
	}
	config := wasmi.NewRuntimeConfig().WithCache(cache)

	compile(ctx, config)
	// Since the above stored translated functions to disk, below won't translate from scratch.
	// Instead, code stored in the file cache is re-used.
	compile(ctx, config)
	compile(ctx, config)

	// Output:
	//
}

func compile(ctx context.Context, config *wasmi.RuntimeConfig) {
	if _, err := wasmi.CompileBinary(ctx, config, addWasm); err != nil {
		log.Panicln(err)
	}
}
