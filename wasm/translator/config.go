package translator

import (
	"github.com/tliron/commonlog"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
)

// FuelCosts is the table of fuel charged per operator when metering is enabled.
type FuelCosts struct {
	// Base is charged for most operators and as the entry cost of every metered region.
	Base uint64
	// Load is charged for memory loads.
	Load uint64
	// Store is charged for memory stores.
	Store uint64
	// Call is charged for direct and indirect calls.
	Call uint64
	// Instance is charged for operators accessing instance state: globals and memory size.
	Instance uint64
}

// DefaultFuelCosts returns the costs used when none are configured: one unit for everything.
func DefaultFuelCosts() FuelCosts {
	return FuelCosts{Base: 1, Load: 1, Store: 1, Call: 1, Instance: 1}
}

// Config is the immutable configuration shared by every Translator of an engine.
type Config struct {
	Features wasm.Features
	// FuelMetering enables emission of ConsumeFuel instructions.
	FuelMetering bool
	FuelCosts    FuelCosts
	// Logger defaults to the "wasmi.translator" logger.
	Logger commonlog.Logger
}

// DefaultConfig enables every finished feature and disables metering.
func DefaultConfig() Config {
	return Config{
		Features:  wasm.FeaturesFinished,
		FuelCosts: DefaultFuelCosts(),
	}
}

func (c *Config) logger() commonlog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return commonlog.GetLogger("wasmi.translator")
}
