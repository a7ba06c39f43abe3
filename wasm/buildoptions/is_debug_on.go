//go:build wasmi_debug

package buildoptions

const IsDebugMode = true
