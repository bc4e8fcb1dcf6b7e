// CLAUDE:SUMMARY CLI subcommand that downloads bulk register extracts and loads them into the local SQLite register.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hazyhaar/abnlookup/pkg/importer"
	"github.com/hazyhaar/abnlookup/pkg/registry"
)

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	source := fs.String("source", "", "adapter ID to import (e.g. abr-bulk-au)")
	all := fs.Bool("all", false, "import all available sources")
	dbPath := fs.String("db", "", "register database (default: db_path from config)")
	sourcesPath := fs.String("sources-db", "", "sources database (default: sources_db from config)")
	setURL := fs.String("url", "", "with -source: store this download URL for the adapter before importing")
	fs.Parse(args)

	logger := newLogger(slog.LevelInfo)
	cfg := mustLoadConfig(*cfgPath, logger)
	if *dbPath == "" {
		*dbPath = cfg.DBPath
	}
	if *sourcesPath == "" {
		*sourcesPath = cfg.SourcesDB
	}

	if err := ensureDir(*sourcesPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Open source DB and seed defaults.
	sdb, err := importer.OpenSourceDB(*sourcesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening sources db: %v\n", err)
		os.Exit(1)
	}
	defer sdb.Close()

	if err := sdb.Seed(importer.All()); err != nil {
		fmt.Fprintf(os.Stderr, "Error seeding sources: %v\n", err)
		os.Exit(1)
	}

	if !*all && *source == "" {
		printSources(sdb)
		return
	}

	if err := ensureDir(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	store, err := registry.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening register: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	if *all {
		failed := 0
		for _, a := range importer.All() {
			if err := runImport(ctx, sdb, store, a); err != nil {
				fmt.Fprintf(os.Stderr, "[%s] ERROR: %v\n", a.ID(), err)
				failed++
			}
		}
		reportTotal(ctx, store)
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	a, err := importer.Get(*source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Println("\nAvailable sources:")
		for _, a := range importer.All() {
			fmt.Printf("  %s\n", a.ID())
		}
		os.Exit(1)
	}

	if *setURL != "" {
		if err := sdb.SetURL(a.ID(), *setURL); err != nil {
			fmt.Fprintf(os.Stderr, "[%s] ERROR (set URL): %v\n", a.ID(), err)
			os.Exit(1)
		}
	}

	if err := runImport(ctx, sdb, store, a); err != nil {
		fmt.Fprintf(os.Stderr, "[%s] ERROR: %v\n", a.ID(), err)
		os.Exit(1)
	}
	reportTotal(ctx, store)
}

// runImport resolves the adapter URL, imports into store and records the
// outcome in the sources table.
func runImport(ctx context.Context, sdb *importer.SourceDB, store *registry.Store, a importer.Adapter) error {
	url, err := sdb.GetURL(a.ID())
	if err != nil {
		return fmt.Errorf("resolve URL: %w", err)
	}
	fmt.Printf("[%s] Importing from %s ...\n", a.ID(), url)
	start := time.Now()
	n, err := a.Import(ctx, url, store)
	if err != nil {
		return err
	}
	if err := sdb.RecordImport(a.ID(), n); err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	fmt.Printf("[%s] OK: %d records in %s\n", a.ID(), n, time.Since(start).Round(time.Second))
	return nil
}

func reportTotal(ctx context.Context, store *registry.Store) {
	if n, err := store.Count(ctx); err == nil {
		fmt.Printf("Register now holds %d businesses.\n", n)
	}
}

func printSources(sdb *importer.SourceDB) {
	fmt.Println("Available sources:")
	fmt.Println()
	sources, _ := sdb.ListSources()
	for _, src := range sources {
		status := ""
		if src.LastStatus != nil {
			status = fmt.Sprintf("  [%d]", *src.LastStatus)
		}
		if src.LastCount != nil {
			status += fmt.Sprintf("  (%d imported)", *src.LastCount)
		}
		fmt.Printf("  %-20s  %s  (%s)%s\n", src.AdapterID, src.Description, src.License, status)
	}
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  abnlookup import -source <id> [-url <download url>] [-db <path>]")
	fmt.Println("  abnlookup import -all [-db <path>]")
}
