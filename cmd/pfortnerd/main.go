// pfortnerd is the elevated broker service. It listens on a Unix socket,
// authenticates callers by OS identity and HMAC signature, evaluates every
// request against the policy engine and executes approved operations.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"
	"time"

	"github.com/codefionn/pfortner/internal/audit"
	"github.com/codefionn/pfortner/internal/brokerd"
	"github.com/codefionn/pfortner/internal/caller"
	"github.com/codefionn/pfortner/internal/config"
	"github.com/codefionn/pfortner/internal/lockfile"
	"github.com/codefionn/pfortner/internal/logger"
	"github.com/codefionn/pfortner/internal/ops"
	"github.com/codefionn/pfortner/internal/pidfile"
	"github.com/codefionn/pfortner/internal/policy"
	"github.com/codefionn/pfortner/internal/protocol"
	"github.com/codefionn/pfortner/internal/ratelimit"
	"github.com/codefionn/pfortner/internal/sandbox"
	"github.com/codefionn/pfortner/internal/securemem"
)

var version = "dev"

type options struct {
	configPath  string
	socketPath  string
	policyPath  string
	secretPath  string
	logLevel    string
	logFile     string
	executor    string
	printPolicy bool
	showVersion bool
}

func parseArgs(args []string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("pfortnerd", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to the configuration file")
	fs.StringVar(&opts.socketPath, "socket", "", "override the Unix socket path")
	fs.StringVar(&opts.policyPath, "policy", "", "override the policy file path")
	fs.StringVar(&opts.secretPath, "secret", "", "override the shared secret file path")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFile, "log-file", "", "log to this file instead of stderr")
	fs.StringVar(&opts.executor, "executor", "", `operation backend: "local" or "sim"`)
	fs.BoolVar(&opts.printPolicy, "print-policy", false, "print the effective policy rules and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if opts.showVersion {
		fmt.Printf("pfortnerd %s\n", version)
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts)

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Global().Close()

	app := appIdentity(cfg)

	if opts.printPolicy {
		return printPolicy(cfg, app)
	}

	logger.Info("pfortnerd %s starting", version)

	// Single instance per runtime directory.
	lock := lockfile.New(cfg.LockfilePath)
	if err := lock.TryAcquire(); err != nil {
		return fmt.Errorf("another instance appears to be running: %w", err)
	}
	defer lock.Release()

	pf := pidfile.New(cfg.PidfilePath)
	if err := pf.Write(); err != nil {
		return fmt.Errorf("write pidfile: %w", err)
	}
	defer pf.Remove()

	// Listen before loading anything heavy, so early clients get a
	// structured not-ready answer instead of a connection refusal.
	srv := brokerd.NewServer(cfg)
	if err := srv.Start(context.Background()); err != nil {
		return err
	}
	defer srv.Stop()

	secret, err := loadOrCreateSecret(cfg.SecretPath)
	if err != nil {
		return err
	}
	signer, err := protocol.NewSigner(secret)
	secret.Destroy()
	if err != nil {
		return err
	}
	defer signer.Destroy()

	rules, err := policy.Load(cfg.PolicyPath, app)
	if err != nil {
		return err
	}

	window, limit := rateOverrides(cfg, rules)
	limiter := ratelimit.New(window, limit)

	validator, err := protocol.NewValidator()
	if err != nil {
		return err
	}

	executor, err := ops.New(cfg.Executor)
	if err != nil {
		return err
	}

	resolver, procName := buildResolver(cfg, app, executor)
	engine := policy.NewEngine(rules, limiter, procName)

	store, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	watcher, err := brokerd.NewStalenessWatcher(store, cfg.PolicyPath, cfg.SecretPath)
	if err != nil {
		logger.Warn("staleness watcher unavailable: %v", err)
	} else {
		defer watcher.Close()
	}

	// Everything the daemon needs is open; drop filesystem access to the
	// few paths still touched at runtime.
	if !cfg.DisableSandbox {
		if err := sandbox.Confine(confinementPaths(cfg), true); err != nil {
			return err
		}
	}

	srv.Provision(&brokerd.Deps{
		Engine:    engine,
		Signer:    signer,
		Validator: validator,
		Resolver:  resolver,
		Executor:  executor,
		Audit:     store,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received %s, shutting down", sig)

	srv.Stop()
	store.Flush()
	return nil
}

func applyOverrides(cfg *config.Config, opts *options) {
	if opts.socketPath != "" {
		cfg.SocketPath = opts.socketPath
	}
	if opts.policyPath != "" {
		cfg.PolicyPath = opts.policyPath
	}
	if opts.secretPath != "" {
		cfg.SecretPath = opts.secretPath
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFile != "" {
		cfg.LogPath = opts.logFile
	}
	if opts.executor != "" {
		cfg.Executor = opts.executor
	}
}

// appIdentity maps the configured application onto the policy's identity.
// The interactive user falls back to whoever runs the daemon, which is the
// right default for single-user installs.
func appIdentity(cfg *config.Config) policy.AppIdentity {
	interactive := cfg.InteractiveUser
	if interactive == "" {
		if u, err := user.Current(); err == nil {
			interactive = u.Username
		}
	}

	installDirs := cfg.App.InstallDirs
	if len(installDirs) == 0 && cfg.Executor == "sim" {
		// Development mode: trust the config directory so the static
		// resolver's synthetic caller passes the path gate.
		installDirs = []string{config.ConfigDir()}
	}

	return policy.AppIdentity{
		Name:            cfg.App.Name,
		Vendor:          cfg.App.Vendor,
		InstallDirs:     installDirs,
		DataDirs:        cfg.App.DataDirs,
		UserDirs:        cfg.App.UserDirs,
		TempDir:         cfg.App.TempDir,
		InteractiveUser: interactive,
		SelfName:        "pfortnerd",
	}
}

func printPolicy(cfg *config.Config, app policy.AppIdentity) error {
	if cfg.PolicyPath != "" {
		data, err := os.ReadFile(cfg.PolicyPath)
		if err != nil {
			return fmt.Errorf("read policy file: %w", err)
		}
		fmt.Printf("// policy file: %s\n%s", cfg.PolicyPath, data)
		return nil
	}
	data, err := json.MarshalIndent(policy.DefaultRuleFile(app), "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("// compiled-in defaults (no policy file configured)\n%s\n", data)
	return nil
}

// loadOrCreateSecret loads the shared secret, generating one on first start.
func loadOrCreateSecret(path string) (*securemem.String, error) {
	secret, err := securemem.LoadFile(path)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	logger.Info("no shared secret at %s, generating one", path)
	secret, err = securemem.GenerateSecret()
	if err != nil {
		return nil, err
	}
	if err := securemem.WriteFile(path, secret); err != nil {
		secret.Destroy()
		return nil, err
	}
	return secret, nil
}

// rateOverrides lets the config file tighten or widen the policy's limits.
func rateOverrides(cfg *config.Config, rules *policy.Rules) (window time.Duration, limit int) {
	window, limit = rules.RateWindow(), rules.RateLimit()
	if cfg.RateLimitWindowSeconds > 0 {
		window = time.Duration(cfg.RateLimitWindowSeconds) * time.Second
	}
	if cfg.RateLimitPerWindow > 0 {
		limit = cfg.RateLimitPerWindow
	}
	return window, limit
}

// buildResolver picks the caller resolver for the executor mode. Simulator
// mode serves a synthetic trusted caller and backs the termination guard
// with the simulator's process table.
func buildResolver(cfg *config.Config, app policy.AppIdentity, executor ops.Executor) (caller.Resolver, policy.ProcessNameFunc) {
	if sim, ok := executor.(*ops.Sim); ok {
		static := &caller.Static{Ctx: caller.Context{
			OSIdentity:  app.InteractiveUser,
			ProcessPath: filepath.Join(firstDir(app.InstallDirs), "client"),
			PID:         os.Getpid(),
			UID:         os.Getuid(),
		}}
		return static, sim.ProcessName
	}
	osResolver := caller.NewOS()
	return osResolver, osResolver.ProcessName
}

func firstDir(dirs []string) string {
	if len(dirs) == 0 {
		return "."
	}
	return dirs[0]
}

// confinementPaths lists what the daemon still touches after startup: its
// own state, the process and account databases for caller resolution, and
// the directories the policy can grant file operations in.
func confinementPaths(cfg *config.Config) sandbox.Paths {
	p := sandbox.Paths{
		ReadOnlyDirs: []string{
			config.ConfigDir(),
			// Caller resolution reads /proc/<pid>/{exe,stat,comm}; identity
			// lookups read the account databases.
			"/proc",
			"/etc",
		},
		ReadOnlyFiles: []string{
			cfg.PolicyPath,
			cfg.SecretPath,
		},
		ReadWriteDirs: []string{
			filepath.Dir(cfg.SocketPath),
			filepath.Dir(cfg.AuditDBPath),
		},
		ReadWriteFiles: []string{
			cfg.LogPath,
		},
	}
	// Approved fileRead/fileWrite operations act inside these trees.
	p.ReadWriteDirs = append(p.ReadWriteDirs, cfg.App.DataDirs...)
	if cfg.App.TempDir != "" {
		p.ReadWriteDirs = append(p.ReadWriteDirs, cfg.App.TempDir)
	}
	p.ReadOnlyDirs = append(p.ReadOnlyDirs, cfg.App.UserDirs...)
	return p
}
