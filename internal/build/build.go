package build

import (
	"fmt"
	"runtime/debug"
)

const Name = "fix-host-ips"

// Set by the linker: -ldflags "-X github.com/mt-inside/fix-host-ips/internal/build.Version=..."
var Version = ""

func version() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

func NameAndVersion() string {
	return fmt.Sprintf("%s/%s", Name, version())
}
