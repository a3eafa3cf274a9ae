// pfortner is the operator CLI for the broker service: it issues signed
// operation calls, inspects service health and the audit trail, and manages
// the shared secret.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/codefionn/pfortner/internal/brokerclient"
	"github.com/codefionn/pfortner/internal/config"
	"github.com/codefionn/pfortner/internal/logger"
	"github.com/codefionn/pfortner/internal/protocol"
	"github.com/codefionn/pfortner/internal/securemem"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := logger.Init(logger.ParseLevel(os.Getenv("PFORTNER_LOG_LEVEL")), ""); err != nil {
		return err
	}

	if len(args) == 0 {
		usage()
		return nil
	}

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "call":
		err = runCall(rest)
	case "status":
		err = runStatus(rest)
	case "secret":
		err = runSecret(rest)
	case "watch":
		err = runWatch(rest)
	case "version", "-version", "--version":
		fmt.Printf("pfortner %s\n", version)
	case "help", "-h", "-help", "--help":
		usage()
	default:
		usage()
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: pfortner <command> [flags]

Commands:
  call <operation>   perform one broker operation and print its result
  status             show service reachability and policy staleness
  watch              follow the audit trail
  secret generate    create a new shared secret
  secret set         read a shared secret from the terminal
  version            print version

Run "pfortner <command> -h" for command flags.
`)
}

// newClient builds a signing client from the configuration. The secret file
// must be readable, which is the CLI's authorization to talk to the broker.
func newClient(cfg *config.Config) (*brokerclient.Client, error) {
	secret, err := securemem.LoadFile(cfg.SecretPath)
	if err != nil {
		return nil, fmt.Errorf("load shared secret (is the service initialized?): %w", err)
	}
	signer, err := protocol.NewSigner(secret)
	secret.Destroy()
	if err != nil {
		return nil, err
	}
	ccfg := brokerclient.DefaultConfig(cfg.SocketPath)
	ccfg.VerifyResponses = cfg.SignResponses
	return brokerclient.New(ccfg, signer)
}
