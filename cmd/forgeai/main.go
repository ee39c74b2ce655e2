// Command forgeai extracts e-commerce category trees and replays them
// from recorded blueprints.
//
// Usage:
//
//	forgeai -config forge.yaml -retailer 7 -url https://shop.example.com
//	forgeai -replay -retailer 7                 # newest blueprint, recorded URL
//	forgeai -blueprint retailer_7_20260815_101502.json
//	forgeai -batch targets.yaml -concurrency 3
//	forgeai -serve                              # MCP on stdio + HTTP status API
//	forgeai -health
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AshleyColeman/templateForgeAi/forge"
	"github.com/AshleyColeman/templateForgeAi/shield"
)

func main() {
	configPath := flag.String("config", "", "path to forge.yaml config file")
	retailerID := flag.Int64("retailer", 0, "retailer id for extraction or replay")
	siteURL := flag.String("url", "", "site URL to extract (or replay URL override)")
	replay := flag.Bool("replay", false, "replay a blueprint instead of extracting")
	blueprintName := flag.String("blueprint", "", "blueprint file name for -replay")
	batchPath := flag.String("batch", "", "YAML file of extraction targets")
	concurrency := flag.Int("concurrency", 2, "parallel runs in batch mode")
	serve := flag.Bool("serve", false, "serve MCP on stdio and the HTTP status API")
	health := flag.Bool("health", false, "probe store, browser and blueprints, then exit")
	logLevel := flag.String("log-level", "", "override log level: debug, info, warn, error")
	headless := flag.Bool("headless", true, "run the browser headless")
	flag.Parse()

	cfg, err := forge.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Log.Level = *logLevel
		case "headless":
			cfg.Browser.Headless = headless
		}
	})
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, options{
		retailerID: *retailerID,
		siteURL:    *siteURL,
		replay:     *replay,
		blueprint:  *blueprintName,
		batchPath:  *batchPath,
		concurrent: *concurrency,
		serve:      *serve,
		health:     *health,
	}); err != nil {
		logger.Error("forgeai: fatal", "error", err)
		os.Exit(1)
	}
}

type options struct {
	retailerID int64
	siteURL    string
	replay     bool
	blueprint  string
	batchPath  string
	concurrent int
	serve      bool
	health     bool
}

func run(ctx context.Context, cfg *forge.Config, logger *slog.Logger, opts options) error {
	svc, err := forge.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer svc.Close()
	logger.Info("forgeai: starting", "config", cfg.Summary())

	switch {
	case opts.health:
		rep := svc.Health(ctx, true)
		printJSON(rep)
		if !rep.OK {
			return errors.New("unhealthy")
		}
		return nil

	case opts.serve:
		return serveMode(ctx, cfg, logger, svc)

	case opts.batchPath != "":
		targets, err := forge.LoadBatchFile(opts.batchPath)
		if err != nil {
			return err
		}
		outcomes := svc.RunBatch(ctx, targets, opts.concurrent)
		printJSON(outcomes)
		failed := 0
		for _, out := range outcomes {
			if out.Error != "" {
				failed++
			}
		}
		if failed == len(outcomes) && failed > 0 {
			return fmt.Errorf("all %d targets failed", failed)
		}
		return nil

	case opts.replay || opts.blueprint != "":
		path := opts.blueprint
		if path != "" && filepath.Base(path) == path {
			path, err = svc.ResolveBlueprint(path)
			if err != nil {
				return err
			}
		}
		out, err := svc.Replay(ctx, opts.retailerID, opts.siteURL, path)
		if out != nil {
			printJSON(out)
		}
		return err

	case opts.siteURL != "":
		if opts.retailerID == 0 {
			return errors.New("-url requires -retailer")
		}
		out, err := svc.Run(ctx, opts.retailerID, opts.siteURL)
		if out != nil {
			printJSON(out)
		}
		return err

	default:
		fmt.Fprintln(os.Stderr, "usage: forgeai [-config <file>] -retailer <id> -url <url> | -replay | -batch <file> | -serve | -health")
		os.Exit(2)
		return nil
	}
}

func serveMode(ctx context.Context, cfg *forge.Config, logger *slog.Logger, svc *forge.Service) error {
	mcpSrv := mcp.NewServer(&mcp.Implementation{
		Name:    "forgeai",
		Version: "1.0.0",
	}, nil)
	svc.RegisterMCP(mcpSrv)

	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack() {
		r.Use(mw)
	}
	svc.RegisterHTTP(r)

	httpSrv := &http.Server{
		Addr:              cfg.Serve.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("forgeai: HTTP status API", "addr", cfg.Serve.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("forgeai: HTTP server", "error", err)
		}
	}()
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutCtx)
	}()

	logger.Info("forgeai: MCP server on stdio")
	err := mcpSrv.Run(ctx, &mcp.StdioTransport{})
	if err != nil && ctx.Err() != nil {
		// Interrupted; the transport error is just the teardown.
		return nil
	}
	return err
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
