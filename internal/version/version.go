// Package version reports the version of this module as recorded by the Go toolchain.
package version

import (
	"runtime/debug"
	"strings"
)

// Default is the version reported when the build carries no module information, for
// example in tests of this module itself.
const Default = "dev"

// modulePath is the path of this module in go.mod.
const modulePath = "github.com/wasmi-labs/wasmi-sub007"

// GetVersion returns the version of this module as a dependency of the running binary.
func GetVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Default
	}
	return versionOf(info)
}

func versionOf(info *debug.BuildInfo) string {
	if info.Main.Path == modulePath {
		return normalize(info.Main.Version)
	}
	for _, dep := range info.Deps {
		if dep.Path != modulePath {
			continue
		}
		if dep.Replace != nil {
			return normalize(dep.Replace.Version)
		}
		return normalize(dep.Version)
	}
	return Default
}

// normalize maps the placeholder versions of local builds to Default.
func normalize(v string) string {
	if v == "" || v == "(devel)" {
		return Default
	}
	return strings.TrimSpace(v)
}
