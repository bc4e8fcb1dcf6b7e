package importer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkConcurrency bounds the number of HEAD requests in flight.
const checkConcurrency = 4

// Checker periodically HEADs every import source and records whether it is
// reachable.
type Checker struct {
	sources  *SourceDB
	logger   *slog.Logger
	interval time.Duration
	client   *http.Client
}

// NewChecker creates a Checker that will verify source URLs every interval.
func NewChecker(sources *SourceDB, logger *slog.Logger, interval time.Duration) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		sources:  sources,
		logger:   logger,
		interval: interval,
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Start runs an immediate check then repeats every interval until ctx is
// cancelled. A non-positive interval runs the check once.
func (c *Checker) Start(ctx context.Context) error {
	c.CheckAll(ctx)
	if c.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

// CheckAll HEADs every source URL and persists the result.
func (c *Checker) CheckAll(ctx context.Context) {
	sources, err := c.sources.ListSources()
	if err != nil {
		c.logger.Error("source check: list sources", "error", err)
		return
	}
	if len(sources) == 0 {
		return
	}

	var ok, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(checkConcurrency)
	for _, src := range sources {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			status, checkErr := c.checkOne(gctx, src.SourceURL)
			errMsg := ""
			if checkErr != nil {
				errMsg = checkErr.Error()
			}

			if err := c.sources.UpdateCheck(src.AdapterID, status, errMsg); err != nil {
				c.logger.Error("source check: update", "adapter", src.AdapterID, "error", err)
			}

			if status >= 200 && status < 400 {
				ok.Add(1)
				return nil
			}
			failed.Add(1)
			c.logger.Warn("source unreachable",
				"adapter", src.AdapterID,
				"url", src.SourceURL,
				"status", status,
				"error", errMsg,
			)
			return nil
		})
	}
	_ = g.Wait()

	c.logger.Info("source check complete", "total", ok.Load()+failed.Load(), "ok", ok.Load(), "failed", failed.Load())
}

// checkOne performs a single HEAD request and returns the HTTP status code.
// On network error, status is 0.
func (c *Checker) checkOne(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HEAD %s: %w", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
