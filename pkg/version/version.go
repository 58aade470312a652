package version

import (
	"fmt"
	"runtime/debug"
)

// Version is the vcs revision and commit time baked into the binary.
var Version = func() string {
	commit := "unknown"
	buildTime := ""
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				commit = setting.Value
			}
			if setting.Key == "vcs.time" {
				buildTime = setting.Value
			}
		}
	}
	if buildTime == "" {
		return commit
	}
	return fmt.Sprintf("%s (%s)", commit, buildTime)
}()
