// Package sandbox confines the daemon's own filesystem reach. After startup
// the broker only ever touches its runtime directory, its audit database and
// its configuration, so everything else is dropped via Landlock where the
// kernel supports it.
package sandbox

import (
	"os"

	"github.com/codefionn/pfortner/internal/logger"
)

// Paths lists what the confined process keeps access to. Entries that do not
// exist are skipped; a rule for a missing path would fail the whole restrict
// call.
type Paths struct {
	// ReadOnlyDirs are directories kept readable (config directory).
	ReadOnlyDirs []string
	// ReadOnlyFiles are individual files kept readable (policy, secret).
	ReadOnlyFiles []string
	// ReadWriteDirs are directories kept writable (runtime dir, audit dir).
	ReadWriteDirs []string
	// ReadWriteFiles are individual files kept writable (log file).
	ReadWriteFiles []string
}

// existing filters out paths that are absent on disk.
func existing(paths []string) []string {
	out := paths[:0:0]
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			logger.Debug("sandbox: skipping absent path %s", p)
			continue
		}
		out = append(out, p)
	}
	return out
}

// Confine restricts the current process to the given paths. With bestEffort
// the strongest available Landlock ABI is used and older kernels degrade to
// no confinement instead of failing startup.
func Confine(paths Paths, bestEffort bool) error {
	return confine(paths, bestEffort)
}
