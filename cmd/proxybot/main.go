package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Wikid82/proxybot/internal/api/routes"
	"github.com/Wikid82/proxybot/internal/commands"
	"github.com/Wikid82/proxybot/internal/config"
	"github.com/Wikid82/proxybot/internal/database"
	"github.com/Wikid82/proxybot/internal/discord"
	"github.com/Wikid82/proxybot/internal/dns"
	"github.com/Wikid82/proxybot/internal/ledger"
	"github.com/Wikid82/proxybot/internal/logger"
	"github.com/Wikid82/proxybot/internal/metrics"
	"github.com/Wikid82/proxybot/internal/npm"
	"github.com/Wikid82/proxybot/internal/server"
	"github.com/Wikid82/proxybot/internal/services"
	"github.com/Wikid82/proxybot/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		configPath  string
		showVersion bool
		from        string
	)
	flagSet := pflag.NewFlagSet("proxybot", pflag.ContinueOnError)
	flagSet.SetOutput(stdout)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default: $PROXYBOT_CONFIG)")
	flagSet.BoolVar(&showVersion, "version", false, "print the version and exit")
	flagSet.StringVar(&from, "from", "", "legacy JSON ledger to import (migrate-ledger only)")
	flagSet.Usage = func() { printHelp(stdout, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Fprintf(stdout, "%s %s\n", version.Name, version.Full())
		return nil
	}

	command := "serve"
	if flagSet.NArg() > 1 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(1))
	}
	if flagSet.NArg() == 1 {
		command = flagSet.Arg(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	closeLog := setupLogging(cfg, stdout)
	defer closeLog()
	logger.RedactSecrets(cfg.NPM.Password, cfg.Discord.BotToken)

	switch command {
	case "serve":
		return serve(ctx, cfg)
	case "register-commands":
		return registerCommands(ctx, cfg)
	case "reconcile":
		return reconcile(ctx, cfg)
	case "migrate-ledger":
		return migrateLedger(ctx, cfg, from)
	default:
		return fmt.Errorf("unknown command %q (want serve, register-commands, reconcile or migrate-ledger)", command)
	}
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `%s manages reverse proxies on Nginx Proxy Manager from Discord slash commands.

Usage:
  proxybot [flags] [serve|register-commands|reconcile|migrate-ledger]

Commands:
  serve              answer interactions over HTTP (default)
  register-commands  publish the slash command set to Discord
  reconcile          prune ledger entries whose proxy no longer exists, once
  migrate-ledger     copy a JSON ledger (--from) into the configured ledger

Flags:
%s`, version.Name, flagSet.FlagUsages())
}

// setupLogging tees log output to stdout and a rotating file in LogDir.
func setupLogging(cfg config.Config, stdout io.Writer) func() {
	if cfg.LogDir == "" {
		logger.Init(cfg.Debug, stdout)
		return func() {}
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		logger.Init(cfg.Debug, stdout)
		logger.Log().WithError(err).Warn("Log directory unavailable, logging to stdout only")
		return func() {}
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, version.Name+".log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Debug, io.MultiWriter(stdout, rotator))
	return func() { _ = rotator.Close() }
}

// openLedger opens the configured store. The returned func releases it.
func openLedger(cfg config.LedgerConfig) (*ledger.Ledger, func(), error) {
	switch cfg.Driver {
	case config.LedgerDriverSQLite:
		db, err := database.Connect(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		store, err := ledger.NewSQLStore(db)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		return ledger.New(store), closeDB, nil
	case config.LedgerDriverFile:
		return ledger.New(ledger.NewFileStore(cfg.Path)), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}

type app struct {
	ledger   *ledger.Ledger
	svc      *services.ProxyService
	notifier *services.NotificationService
	close    func()
}

func newApp(cfg config.Config) (*app, error) {
	l, closeLedger, err := openLedger(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	tokens := npm.NewTokenProvider(cfg.NPM.URL, cfg.NPM.Email, cfg.NPM.Password, cfg.NPM.Timeout, cfg.NPM.CacheToken)
	notifier := services.NewNotificationService(cfg.NotifyURLs)
	svc := services.NewProxyService(
		npm.NewClient(cfg.NPM.URL, tokens, cfg.NPM.Timeout),
		dns.New(cfg.DNS.Server, cfg.DNS.Timeout),
		l,
		notifier,
		services.ProxyServiceConfig{
			ServerIP:         cfg.ServerIP,
			LetsEncryptEmail: cfg.LetsEncryptEmail,
			ListCheckLimit:   cfg.ListCheckLimit,
		},
	)
	return &app{ledger: l, svc: svc, notifier: notifier, close: closeLedger}, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	logger.Log().WithFields(logrus.Fields{
		"version": version.Full(),
		"ledger":  cfg.Ledger.Driver,
	}).Infof("Starting %s", version.Name)

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()
	defer a.notifier.Wait()

	var publicKey ed25519.PublicKey
	if cfg.Discord.PublicKey != "" {
		if publicKey, err = discord.ParsePublicKey(cfg.Discord.PublicKey); err != nil {
			return fmt.Errorf("discord public key: %w", err)
		}
	} else {
		logger.Log().Warn("Discord public key not set, interaction signatures are not verified")
	}

	registry := commands.NewRegistry(a.svc)
	var followup discord.Followup
	if cfg.ValidateRegistration() == nil {
		client := discord.NewClient(cfg.Discord.APIBase, cfg.Discord.ApplicationID, cfg.Discord.BotToken)
		followup = client
		if err := client.RegisterCommands(ctx, registry.Descriptors()); err != nil {
			logger.Log().WithError(err).Warn("Failed to register slash commands, continuing with the existing set")
		}
	}
	interactions := discord.NewHandler(registry, followup, cfg.Discord.PermissionTemplate)
	defer interactions.Wait()

	reconciler, err := services.NewReconciler(a.svc, cfg.ReconcileSchedule)
	if err != nil {
		return err
	}
	reconciler.Start()
	defer reconciler.Stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	srv := server.New(cfg, routes.Deps{
		Interactions: interactions,
		PublicKey:    publicKey,
		Ledger:       a.ledger,
		Metrics:      reg,
	})
	return srv.Run(ctx)
}

func registerCommands(ctx context.Context, cfg config.Config) error {
	if err := cfg.ValidateRegistration(); err != nil {
		return err
	}
	descriptors := commands.NewRegistry(nil).Descriptors()
	client := discord.NewClient(cfg.Discord.APIBase, cfg.Discord.ApplicationID, cfg.Discord.BotToken)
	if err := client.RegisterCommands(ctx, descriptors); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	logger.Log().WithField("count", len(descriptors)).Info("Registered slash commands")
	return nil
}

func reconcile(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()
	defer a.notifier.Wait()

	report, err := a.svc.Reconcile(ctx)
	if err != nil {
		return err
	}
	logger.Log().WithFields(logrus.Fields{
		"users":   report.Users,
		"checked": report.Checked,
		"pruned":  report.Pruned,
		"failed":  report.Failed,
	}).Info("Reconciliation finished")
	return nil
}

func migrateLedger(ctx context.Context, cfg config.Config, from string) error {
	if from == "" {
		return errors.New("migrate-ledger needs --from")
	}
	l, closeLedger, err := openLedger(cfg.Ledger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer closeLedger()

	n, err := l.Import(ctx, ledger.NewFileStore(from))
	if err != nil {
		return err
	}
	logger.Log().WithFields(logrus.Fields{"from": from, "users": n}).Info("Imported ledger")
	return nil
}
