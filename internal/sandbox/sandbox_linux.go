//go:build linux

package sandbox

import (
	"fmt"

	landlock "github.com/landlock-lsm/go-landlock/landlock"

	"github.com/codefionn/pfortner/internal/logger"
)

func confine(paths Paths, bestEffort bool) error {
	var rules []landlock.Rule
	for _, p := range existing(paths.ReadOnlyDirs) {
		rules = append(rules, landlock.RODirs(p))
	}
	for _, p := range existing(paths.ReadOnlyFiles) {
		rules = append(rules, landlock.ROFiles(p))
	}
	for _, p := range existing(paths.ReadWriteDirs) {
		rules = append(rules, landlock.RWDirs(p))
	}
	for _, p := range existing(paths.ReadWriteFiles) {
		rules = append(rules, landlock.RWFiles(p))
	}

	cfg := landlock.V6
	if bestEffort {
		cfg = cfg.BestEffort()
	}
	if err := cfg.RestrictPaths(rules...); err != nil {
		return fmt.Errorf("sandbox: landlock restrict: %w", err)
	}
	logger.Info("filesystem confinement active (%d rules)", len(rules))
	return nil
}
