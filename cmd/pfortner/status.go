package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/codefionn/pfortner/internal/audit"
	"github.com/codefionn/pfortner/internal/brokerclient"
	"github.com/codefionn/pfortner/internal/brokerd"
	"github.com/codefionn/pfortner/internal/config"
)

// runStatus probes the service with a read-only call and reports policy
// staleness from the audit metadata.
func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	timeout := fs.Duration("timeout", 5*time.Second, "probe timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	fmt.Printf("socket:        %s\n", cfg.SocketPath)

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	_, probeErr := client.GetWindows(ctx)
	rtt := time.Since(start).Round(time.Millisecond)

	switch {
	case probeErr == nil:
		fmt.Printf("service:       up (%s round trip)\n", rtt)
	case errors.Is(probeErr, brokerclient.ErrNotReady):
		fmt.Printf("service:       starting (not ready yet)\n")
	case errors.Is(probeErr, brokerclient.ErrBrokerUnavailable):
		fmt.Printf("service:       down (%v)\n", probeErr)
	default:
		// Reachable but the probe was rejected; still a live service.
		fmt.Printf("service:       up (%s round trip, probe rejected: %v)\n", rtt, probeErr)
	}

	if _, err := os.Stat(cfg.AuditDBPath); err != nil {
		fmt.Printf("audit:         no database at %s\n", cfg.AuditDBPath)
		return nil
	}
	store, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	staleSince, err := store.GetMeta(brokerd.MetaKeyPolicyStale)
	if err != nil {
		return err
	}
	if staleSince == "" {
		fmt.Printf("policy:        current\n")
	} else {
		fmt.Printf("policy:        STALE since %s (restart pfortnerd to reload)\n", staleSince)
	}
	return nil
}
