// Package version derives the build identity reported in logs and the
// health endpoint: an -ldflags override wins, then VCS metadata from
// debug.BuildInfo, then "dev".
package version

import "runtime/debug"

// AppName names the service in version strings and log lines.
const AppName = "concierge"

// commitOverride is injected with -ldflags for container builds that
// carry no .git directory.
var commitOverride string

// GitCommit is the short commit hash this binary was built from, or "dev"
// when no build metadata exists (go test, non-git builds).
var GitCommit = resolveCommit()

func resolveCommit() string {
	if commitOverride != "" {
		return shortRev(commitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return shortRev(s.Value)
			}
		}
	}
	return "dev"
}

func shortRev(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "concierge/<commit>" for log lines and user agents.
func Full() string {
	return AppName + "/" + GitCommit
}
