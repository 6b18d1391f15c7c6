package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/toolline/agent-memory/internal/admin"
	"github.com/toolline/agent-memory/internal/config"
	"github.com/toolline/agent-memory/internal/memory"
	"github.com/toolline/agent-memory/internal/store"
	"github.com/toolline/agent-memory/internal/sweep"
	"github.com/toolline/agent-memory/internal/toolserver"
	"github.com/toolline/agent-memory/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sub := os.Args[1]
	switch sub {
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "maintain":
		if err := runMaintain(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "admin":
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Println("agent-memory v0.1.0")
	default:
		usage()
		os.Exit(2)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "config/agent-memory.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportCaller: false, Prefix: cfg.ServerName})
	setLogLevel(logger, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, sink, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := memory.NewService(st, cfg, logger)

	decayOpts := types.DecayOptions{
		DaysUntilDecay:   cfg.DecayAfterDays,
		DaysUntilArchive: cfg.ArchiveAfterDays,
		ProtectCritical:  true,
	}
	go sweep.Start(ctx, logger, time.Duration(cfg.SweepIntervalSeconds)*time.Second, decayOpts, svc)

	server := toolserver.NewServer(svc, logger, sink)
	logger.Info("starting stdio tool server", "backend", cfg.StoreBackend, "store", cfg.StorePath)
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runMaintain(args []string) error {
	fs := flag.NewFlagSet("maintain", flag.ContinueOnError)
	configPath := fs.String("config", "config/agent-memory.yaml", "Path to config file")
	dryRun := fs.Bool("dry-run", false, "Report what would change without persisting")
	consolidate := fs.Bool("consolidate", false, "Merge near-duplicate clusters instead of only reporting them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := log.New(os.Stderr)
	setLogLevel(logger, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, _, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := memory.NewService(st, cfg, logger)
	report, err := svc.RunFullMaintenance(ctx, types.MaintenanceOptions{
		AutoConsolidate: *consolidate,
		DryRun:          *dryRun,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runAdmin(args []string) error {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	configPath := fs.String("config", "config/agent-memory.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := log.New(os.Stderr)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, _, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := memory.NewService(st, cfg, logger)
	var activity admin.ActivitySource
	if sq, ok := st.(*store.SQLiteStore); ok {
		activity = sq
	}
	return admin.Run(ctx, svc, activity)
}

// openStore opens the configured backend. Only sqlite keeps a request
// log, so the sink is nil for the file backend.
func openStore(ctx context.Context, cfg config.Config, logger *log.Logger) (store.Store, toolserver.RequestLogSink, error) {
	switch cfg.StoreBackend {
	case "file":
		st, err := store.OpenFile(cfg.StorePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	default:
		st, err := store.OpenSQLite(ctx, cfg.StorePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	}
}

func setLogLevel(logger *log.Logger, level string) {
	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
}

func usage() {
	fmt.Print(`agent-memory

Usage:
  agent-memory serve [--config path]
  agent-memory maintain [--config path] [--dry-run] [--consolidate]
  agent-memory admin [--config path]
  agent-memory version
`)
}
