package wasm

import (
	"fmt"
	"strings"
)

// Features are the currently enabled features.
//
// Note: This is a bit flag until we have too many (>63). Flags are simpler to manage in multiple places than a map.
type Features uint64

// Features20191205 include those finished in WebAssembly 1.0 (20191205).
const Features20191205 = FeatureMutableGlobal

// FeaturesFinished include all supported finished features, regardless of W3C status.
const FeaturesFinished Features = 0xffffffffffffffff

const (
	// FeatureMutableGlobal decides if global vars are allowed to be imported or exported (ExternTypeGlobal)
	// See https://github.com/WebAssembly/mutable-global
	FeatureMutableGlobal Features = 1 << iota

	// FeatureSignExtensionOps decides if parsing should succeed on the sign-extension operators like
	// OpcodeI32Extend8S.
	// See https://github.com/WebAssembly/spec/blob/main/proposals/sign-extension-ops/Overview.md
	FeatureSignExtensionOps

	// FeatureMultiValue decides if parsing should succeed on the following:
	//   - Block types with parameters or more than one result.
	//   - Functions with more than one result.
	// See https://github.com/WebAssembly/spec/blob/main/proposals/multi-value/Overview.md
	FeatureMultiValue

	// FeatureNonTrappingFloatToIntConversion decides if parsing should succeed on the saturating
	// float-to-int conversions under OpcodeMiscPrefix.
	// See https://github.com/WebAssembly/spec/blob/main/proposals/nontrapping-float-to-int-conversion/Overview.md
	FeatureNonTrappingFloatToIntConversion

	// FeatureBulkMemoryOperations decides if parsing should succeed on memory.fill, memory.copy,
	// memory.init, data.drop and their table counterparts table.init, table.copy and elem.drop.
	// See https://github.com/WebAssembly/spec/blob/main/proposals/bulk-memory-operations/Overview.md
	FeatureBulkMemoryOperations

	// FeatureReferenceTypes decides if parsing should succeed on the following:
	//   - ref.null, ref.func and ref.is_null.
	//   - table.get, table.set, table.size, table.grow and table.fill.
	//   - select with an explicit result type.
	// See https://github.com/WebAssembly/spec/blob/main/proposals/reference-types/Overview.md
	FeatureReferenceTypes

	// FeatureTailCall decides if parsing should succeed on return_call and return_call_indirect.
	// See https://github.com/WebAssembly/tail-call/blob/main/proposals/tail-call/Overview.md
	FeatureTailCall
)

// Set assigns the value for the given feature.
func (f Features) Set(feature Features, val bool) Features {
	if val {
		return f | feature
	}
	return f &^ feature
}

// Get returns the value of the given feature.
func (f Features) Get(feature Features) bool {
	return f&feature != 0
}

// Require fails with a configuration error if the given feature is not enabled
func (f Features) Require(feature Features) error {
	if f&feature == 0 {
		return fmt.Errorf("feature %q is disabled", feature)
	}
	return nil
}

// String implements fmt.Stringer by returning each enabled feature.
func (f Features) String() string {
	var builder strings.Builder
	for i := 0; i <= 63; i++ { // cycle through all bits to reduce code and maintenance
		target := Features(1 << i)
		if f.Get(target) {
			if name := featureName(target); name != "" {
				if builder.Len() > 0 {
					builder.WriteByte('|')
				}
				builder.WriteString(name)
			}
		}
	}
	return builder.String()
}

func featureName(f Features) string {
	switch f {
	case FeatureMutableGlobal:
		// match https://github.com/WebAssembly/mutable-global
		return "mutable-global"
	case FeatureSignExtensionOps:
		// match https://github.com/WebAssembly/spec/blob/main/proposals/sign-extension-ops/Overview.md
		return "sign-extension-ops"
	case FeatureMultiValue:
		// match https://github.com/WebAssembly/spec/blob/main/proposals/multi-value/Overview.md
		return "multi-value"
	case FeatureNonTrappingFloatToIntConversion:
		// match https://github.com/WebAssembly/spec/blob/main/proposals/nontrapping-float-to-int-conversion/Overview.md
		return "nontrapping-float-to-int-conversion"
	case FeatureBulkMemoryOperations:
		// match https://github.com/WebAssembly/spec/blob/main/proposals/bulk-memory-operations/Overview.md
		return "bulk-memory-operations"
	case FeatureReferenceTypes:
		// match https://github.com/WebAssembly/spec/blob/main/proposals/reference-types/Overview.md
		return "reference-types"
	case FeatureTailCall:
		// match https://github.com/WebAssembly/tail-call/blob/main/proposals/tail-call/Overview.md
		return "tail-call"
	}
	return ""
}
