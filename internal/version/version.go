// Package version reports the codenav build version.
package version

import "runtime/debug"

// Version is set at link time with -ldflags "-X codenav/internal/version.Version=v1.2.3".
var Version = ""

func String() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
