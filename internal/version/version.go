// Package version identifies the reindex build.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Set with -ldflags "-X github.com/standardbeagle/reindex/internal/version.GitCommit=...".
var (
	Version   = "0.1.0"
	BuildDate = "development"
	GitCommit = "unknown"
)

func FullInfo() string {
	return fmt.Sprintf("reindex %s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
}

// buildSettings are the build info keys that distinguish two binaries built
// from the same module version.
var buildSettings = map[string]bool{
	"vcs.revision": true,
	"vcs.modified": true,
	"vcs.time":     true,
}

// BuildID fingerprints the running binary. A status client compares it with
// the watch session's to detect a session left over from another build.
var BuildID = sync.OnceValue(func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version + "-" + GitCommit
	}

	d := xxhash.New()
	for _, s := range []string{info.GoVersion, info.Main.Path, info.Main.Version} {
		_, _ = d.WriteString(s)
	}
	for _, s := range info.Settings {
		if buildSettings[s.Key] {
			_, _ = d.WriteString(s.Key + "=" + s.Value)
		}
	}
	return fmt.Sprintf("%016x", d.Sum64())
})
