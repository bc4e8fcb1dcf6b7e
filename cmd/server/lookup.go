package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hazyhaar/abnlookup/pkg/abn"
	"github.com/hazyhaar/abnlookup/pkg/search"
)

func cmdLookup(args []string) {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	modeFlag := fs.String("mode", "abn", "search mode: abn or name")
	asJSON := fs.Bool("json", false, "print results as JSON")
	fs.Parse(args)

	logger := newLogger(slog.LevelWarn)
	cfg := mustLoadConfig(*cfgPath, logger)

	mode, err := abn.ParseMode(*modeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	be, err := openBackend(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer be.close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+time.Second)
	defer cancel()

	st, err := runLookup(ctx, be.svc, logger, mode, strings.Join(fs.Args(), " "))
	if err != nil {
		fmt.Fprintln(os.Stderr, st.Error)
		os.Exit(1)
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(st.Results)
		return
	}
	printResults(os.Stdout, st)
}

// runLookup drives one controller through a single submit.
func runLookup(ctx context.Context, svc search.LookupService, logger *slog.Logger, mode abn.Mode, term string) (search.State, error) {
	c := search.New(svc, search.WithLogger(logger))
	c.SetMode(mode)
	c.SetTerm(term)
	err := c.Submit(ctx)
	return c.State(), err
}

func printResults(w io.Writer, st search.State) {
	if !st.HasResults() {
		fmt.Fprintln(w, "No results.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ABN\tNAME\tSTATUS\tSTATE\tPOSTCODE")
	for _, r := range st.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.FormattedABN, r.Name, r.Status, r.State, r.Postcode)
	}
	tw.Flush()
}
