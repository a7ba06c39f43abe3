//go:build !wasmi_debug

package buildoptions

// IsDebugMode true if the translator is built with the "wasmi_debug" tag. This can be used to
// insert the "debug-time" assertions in the main code as `if buildoptions.IsDebugMode { ... }` block,
// which will be optimized out by the final binary of users.
const IsDebugMode = false
