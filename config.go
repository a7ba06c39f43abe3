package wasmi

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
	"github.com/wasmi-labs/wasmi-sub007/wasm/translator"
)

// RuntimeConfig controls how function bodies are translated, with the default implementation as NewRuntimeConfig.
//
// RuntimeConfig is immutable: each With* method returns a new instance including the corresponding change.
type RuntimeConfig struct {
	enabledFeatures wasm.Features
	fuelMetering    bool
	fuelCosts       translator.FuelCosts
	cache           Cache
	workers         int
	logger          commonlog.Logger
}

// defaultConfig helps avoid copy/pasting the wrong defaults.
var defaultConfig = &RuntimeConfig{
	enabledFeatures: wasm.FeaturesFinished,
	fuelCosts:       translator.DefaultFuelCosts(),
}

// clone ensures all fields are copied even if nil.
func (c *RuntimeConfig) clone() *RuntimeConfig {
	ret := *c
	return &ret
}

// NewRuntimeConfig returns a RuntimeConfig with every finished feature enabled and fuel metering disabled.
func NewRuntimeConfig() *RuntimeConfig {
	return defaultConfig.clone()
}

// WithFeatures replaces the enabled features.
func (c *RuntimeConfig) WithFeatures(features wasm.Features) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures = features
	return ret
}

// WithFeatureMultiValue enables blocks and functions with multiple results or with parameters.
//
// See https://github.com/WebAssembly/spec/blob/main/proposals/multi-value/Overview.md
func (c *RuntimeConfig) WithFeatureMultiValue(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures = ret.enabledFeatures.Set(wasm.FeatureMultiValue, enabled)
	return ret
}

// WithFeatureSignExtensionOps enables sign-extend operations.
//
// See https://github.com/WebAssembly/spec/blob/main/proposals/sign-extension-ops/Overview.md
func (c *RuntimeConfig) WithFeatureSignExtensionOps(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures = ret.enabledFeatures.Set(wasm.FeatureSignExtensionOps, enabled)
	return ret
}

// WithFeatureNonTrappingFloatToIntConversion enables the saturating truncation operators.
//
// See https://github.com/WebAssembly/spec/blob/main/proposals/nontrapping-float-to-int-conversion/Overview.md
func (c *RuntimeConfig) WithFeatureNonTrappingFloatToIntConversion(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures = ret.enabledFeatures.Set(wasm.FeatureNonTrappingFloatToIntConversion, enabled)
	return ret
}

// WithFeatureBulkMemoryOperations enables the memory and table range operators together
// with data.drop and elem.drop.
//
// See https://github.com/WebAssembly/spec/blob/main/proposals/bulk-memory-operations/Overview.md
func (c *RuntimeConfig) WithFeatureBulkMemoryOperations(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures = ret.enabledFeatures.Set(wasm.FeatureBulkMemoryOperations, enabled)
	return ret
}

// WithFeatureReferenceTypes enables reference values, table access and typed select.
//
// See https://github.com/WebAssembly/spec/blob/main/proposals/reference-types/Overview.md
func (c *RuntimeConfig) WithFeatureReferenceTypes(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures = ret.enabledFeatures.Set(wasm.FeatureReferenceTypes, enabled)
	return ret
}

// WithFeatureTailCall enables return_call and return_call_indirect.
//
// See https://github.com/WebAssembly/tail-call/blob/main/proposals/tail-call/Overview.md
func (c *RuntimeConfig) WithFeatureTailCall(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures = ret.enabledFeatures.Set(wasm.FeatureTailCall, enabled)
	return ret
}

// WithFuelMetering makes translated code charge fuel for every executed operator.
func (c *RuntimeConfig) WithFuelMetering(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.fuelMetering = enabled
	return ret
}

// WithFuelCosts replaces the fuel charged per kind of operator. It has no effect unless
// fuel metering is enabled.
func (c *RuntimeConfig) WithFuelCosts(costs translator.FuelCosts) *RuntimeConfig {
	ret := c.clone()
	ret.fuelCosts = costs
	return ret
}

// WithCache configures the cache of translated functions. Defaults to no caching.
func (c *RuntimeConfig) WithCache(cache Cache) *RuntimeConfig {
	ret := c.clone()
	ret.cache = cache
	return ret
}

// WithCompilationWorkers limits the number of functions translated concurrently.
// Zero, the default, means runtime.GOMAXPROCS.
func (c *RuntimeConfig) WithCompilationWorkers(workers int) *RuntimeConfig {
	ret := c.clone()
	ret.workers = workers
	return ret
}

// WithLogger replaces the logger used while compiling. Defaults to the "wasmi" logger, and to
// "wasmi.translator" for the per function trace.
func (c *RuntimeConfig) WithLogger(logger commonlog.Logger) *RuntimeConfig {
	ret := c.clone()
	ret.logger = logger
	return ret
}

// Features returns the enabled features.
func (c *RuntimeConfig) Features() wasm.Features {
	return c.enabledFeatures
}

// FuelMetering returns true if translated code is metered.
func (c *RuntimeConfig) FuelMetering() bool {
	return c.fuelMetering
}

// FuelCosts returns the fuel charged per kind of operator.
func (c *RuntimeConfig) FuelCosts() translator.FuelCosts {
	return c.fuelCosts
}

func (c *RuntimeConfig) getLogger() commonlog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return commonlog.GetLogger("wasmi")
}

func (c *RuntimeConfig) translatorConfig() translator.Config {
	return translator.Config{
		Features:     c.enabledFeatures,
		FuelMetering: c.fuelMetering,
		FuelCosts:    c.fuelCosts,
		// A nil logger selects the translator's own.
		Logger: c.logger,
	}
}

// fingerprint hashes every setting which changes the translated code.
func (c *RuntimeConfig) fingerprint() [sha256.Size]byte {
	var buf [8 * 7]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(c.enabledFeatures))
	if c.fuelMetering {
		buf[8] = 1
	}
	binary.LittleEndian.PutUint64(buf[16:], c.fuelCosts.Base)
	binary.LittleEndian.PutUint64(buf[24:], c.fuelCosts.Load)
	binary.LittleEndian.PutUint64(buf[32:], c.fuelCosts.Store)
	binary.LittleEndian.PutUint64(buf[40:], c.fuelCosts.Call)
	binary.LittleEndian.PutUint64(buf[48:], c.fuelCosts.Instance)
	return sha256.Sum256(buf[:])
}

// tomlConfig is the document read by LoadRuntimeConfig. Pointers distinguish absent keys
// from false or zero values.
type tomlConfig struct {
	Features struct {
		MultiValue            *bool `toml:"multi_value"`
		SignExtension         *bool `toml:"sign_extension"`
		NonTrappingFloatToInt *bool `toml:"nontrapping_float_to_int"`
		BulkMemory            *bool `toml:"bulk_memory"`
		ReferenceTypes        *bool `toml:"reference_types"`
		TailCall              *bool `toml:"tail_call"`
	} `toml:"features"`
	Metering struct {
		Enabled *bool `toml:"enabled"`
		Costs   struct {
			Base     *uint64 `toml:"base"`
			Load     *uint64 `toml:"load"`
			Store    *uint64 `toml:"store"`
			Call     *uint64 `toml:"call"`
			Instance *uint64 `toml:"instance"`
		} `toml:"costs"`
	} `toml:"metering"`
	Compile struct {
		Workers *int `toml:"workers"`
	} `toml:"compile"`
}

// LoadRuntimeConfig reads a TOML document on top of NewRuntimeConfig. Keys left out keep their defaults.
//
// For example:
//
//	[features]
//	multi_value = true
//	sign_extension = false
//	tail_call = false
//
//	[metering]
//	enabled = true
//
//	[metering.costs]
//	load = 4
//	store = 4
//
//	[compile]
//	workers = 2
func LoadRuntimeConfig(r io.Reader) (*RuntimeConfig, error) {
	var doc tomlConfig
	md, err := toml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("parse runtime config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse runtime config: unknown key %q", undecoded[0].String())
	}

	c := NewRuntimeConfig()
	setFeature := func(f wasm.Features, v *bool) {
		if v != nil {
			c.enabledFeatures = c.enabledFeatures.Set(f, *v)
		}
	}
	setFeature(wasm.FeatureMultiValue, doc.Features.MultiValue)
	setFeature(wasm.FeatureSignExtensionOps, doc.Features.SignExtension)
	setFeature(wasm.FeatureNonTrappingFloatToIntConversion, doc.Features.NonTrappingFloatToInt)
	setFeature(wasm.FeatureBulkMemoryOperations, doc.Features.BulkMemory)
	setFeature(wasm.FeatureReferenceTypes, doc.Features.ReferenceTypes)
	setFeature(wasm.FeatureTailCall, doc.Features.TailCall)

	if doc.Metering.Enabled != nil {
		c.fuelMetering = *doc.Metering.Enabled
	}
	setCost := func(dst *uint64, v *uint64) {
		if v != nil {
			*dst = *v
		}
	}
	costs := doc.Metering.Costs
	setCost(&c.fuelCosts.Base, costs.Base)
	setCost(&c.fuelCosts.Load, costs.Load)
	setCost(&c.fuelCosts.Store, costs.Store)
	setCost(&c.fuelCosts.Call, costs.Call)
	setCost(&c.fuelCosts.Instance, costs.Instance)
	if c.fuelCosts.Base == 0 {
		return nil, fmt.Errorf("parse runtime config: metering.costs.base must be positive")
	}

	if w := doc.Compile.Workers; w != nil {
		if *w < 0 {
			return nil, fmt.Errorf("parse runtime config: compile.workers must not be negative: %d", *w)
		}
		c.workers = *w
	}
	return c, nil
}

// LoadRuntimeConfigFile reads the TOML document at path. See LoadRuntimeConfig.
func LoadRuntimeConfigFile(path string) (*RuntimeConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := LoadRuntimeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
