package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/codefionn/pfortner/internal/config"
	"github.com/codefionn/pfortner/internal/securemem"
)

// runSecret manages the shared secret file: "generate" creates a random
// secret, "set" reads one from the terminal without echo.
func runSecret(args []string) error {
	fs := flag.NewFlagSet("secret", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	force := fs.Bool("force", false, "overwrite an existing secret file")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: pfortner secret <generate|set> [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if len(args) == 0 {
		fs.Usage()
		return fmt.Errorf("secret: subcommand is required")
	}
	sub := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if !*force {
		if _, err := os.Stat(cfg.SecretPath); err == nil {
			return fmt.Errorf("secret: %s exists, use -force to overwrite (the service and all clients must share the new secret)", cfg.SecretPath)
		}
	}

	var secret *securemem.String
	switch sub {
	case "generate":
		secret, err = securemem.GenerateSecret()
		if err != nil {
			return err
		}
	case "set":
		secret, err = readSecretFromTerminal()
		if err != nil {
			return err
		}
	default:
		fs.Usage()
		return fmt.Errorf("secret: unknown subcommand %q", sub)
	}
	defer secret.Destroy()

	if err := securemem.WriteFile(cfg.SecretPath, secret); err != nil {
		return err
	}
	fmt.Printf("wrote secret to %s (restart pfortnerd to pick it up)\n", cfg.SecretPath)
	return nil
}

// readSecretFromTerminal prompts twice with echo off.
func readSecretFromTerminal() (*securemem.String, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("secret: stdin is not a terminal, refusing to read a secret from a pipe")
	}

	fmt.Fprint(os.Stderr, "Secret: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("secret: read: %w", err)
	}

	fmt.Fprint(os.Stderr, "Repeat: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		securemem.SecureWipe(first)
		return nil, fmt.Errorf("secret: read: %w", err)
	}

	if string(first) != string(second) {
		securemem.SecureWipe(first)
		securemem.SecureWipe(second)
		return nil, fmt.Errorf("secret: inputs do not match")
	}
	securemem.SecureWipe(second)

	if len(first) < 32 {
		securemem.SecureWipe(first)
		return nil, fmt.Errorf("secret: need at least 32 characters")
	}

	// NewStringFromBytes wipes first
	return securemem.NewStringFromBytes(first), nil
}
