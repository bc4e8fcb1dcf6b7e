package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/abnlookup/pkg/api"
	"github.com/hazyhaar/abnlookup/pkg/chassis"
	"github.com/hazyhaar/abnlookup/pkg/importer"
	"github.com/hazyhaar/abnlookup/pkg/mcpline"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "import":
		cmdImport(os.Args[2:])
	case "lookup":
		cmdLookup(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: abnlookup <command>

Commands:
  serve    Start the HTTP server (REST API + MCP at /mcp)
  import   Load bulk register extracts into the local database
  lookup   Run one search and print the results
  mcp      Serve MCP over stdio
  version  Print the version
`)
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	logger := newLogger(slog.LevelInfo)
	cfg := mustLoadConfig(*cfgPath, logger)
	logger = newLogger(cfg.level())

	be, err := openBackend(cfg, logger)
	if err != nil {
		logger.Error("failed to open backend", "error", err)
		os.Exit(1)
	}
	defer be.close()
	logger.Info("lookup backend ready", "backend", cfg.Backend, "cache_ttl", cfg.Cache.TTL)

	// Source DB is optional: only the local backend is fed by imports.
	var sdb *importer.SourceDB
	if cfg.Backend == "local" && cfg.SourcesDB != "" {
		if err := ensureDir(cfg.SourcesDB); err != nil {
			logger.Error("failed to open sources db", "error", err)
			os.Exit(1)
		}
		sdb, err = importer.OpenSourceDB(cfg.SourcesDB)
		if err != nil {
			logger.Error("failed to open sources db", "error", err)
			os.Exit(1)
		}
		defer sdb.Close()
		if err := sdb.Seed(importer.All()); err != nil {
			logger.Error("failed to seed sources", "error", err)
			os.Exit(1)
		}
	}

	routerCfg := api.Config{
		Service: be.svc,
		Backend: cfg.Backend,
		Count:   be.count,
		Sources: sdb,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	}
	if cfg.MCP {
		mcpSrv := api.NewMCPServer(version, be.svc, sdb, logger)
		routerCfg.MCP = server.NewStreamableHTTPServer(mcpSrv)
	}

	srv, err := chassis.New(chassis.Config{
		Addr:       cfg.Addr,
		CertFile:   cfg.TLS.CertFile,
		KeyFile:    cfg.TLS.KeyFile,
		SelfSigned: cfg.TLS.SelfSigned,
		Handler:    api.NewRouter(routerCfg),
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	// SIGHUP: drop cached lookups.
	// SIGINT/SIGTERM: graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if be.cache != nil {
		sighup := make(chan os.Signal, 1)
		signal.Notify(sighup, syscall.SIGHUP)
		defer signal.Stop(sighup)
		go func() {
			for range sighup {
				n := be.cache.Len()
				be.cache.Flush()
				logger.Info("SIGHUP received, lookup cache flushed", "entries", n)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if sdb != nil && cfg.CheckInterval > 0 {
		checker := importer.NewChecker(sdb, logger, cfg.CheckInterval)
		g.Go(func() error {
			return checker.Start(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	// stdout carries the protocol; logs go to stderr only.
	logger := newLogger(slog.LevelWarn)
	cfg := mustLoadConfig(*cfgPath, logger)

	be, err := openBackend(cfg, logger)
	if err != nil {
		logger.Error("failed to open backend", "error", err)
		os.Exit(1)
	}
	defer be.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := mcpline.NewHandler(api.NewMCPServer(version, be.svc, nil, logger), logger)
	if err := h.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("mcp session failed", "error", err)
		os.Exit(1)
	}
}
