//go:build !linux

package sandbox

import (
	"runtime"

	"github.com/codefionn/pfortner/internal/logger"
)

func confine(paths Paths, bestEffort bool) error {
	logger.Debug("filesystem confinement unavailable on %s", runtime.GOOS)
	return nil
}
