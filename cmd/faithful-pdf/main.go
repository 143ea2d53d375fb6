package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/a3tai/faithful-pdf/internal/config"
	"github.com/a3tai/faithful-pdf/internal/logging"
	"github.com/a3tai/faithful-pdf/internal/mcp"
	"github.com/a3tai/faithful-pdf/internal/pdf/extraction"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
	"github.com/a3tai/faithful-pdf/internal/pdf/wrapper"
	"github.com/a3tai/faithful-pdf/internal/store"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

func main() {
	cfg, err := config.LoadFromFlags()
	switch {
	case errors.Is(err, config.ErrVersionRequested):
		printVersion(os.Stdout)
		return
	case errors.Is(err, pflag.ErrHelp):
		return
	case err != nil:
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	err = run(ctx, cfg, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run extracts cfg.Input when set, otherwise serves MCP until ctx is done
func run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	logger, err := logging.NewWithWriter(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}, stderr)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsDebug() {
		logger.Debug("starting with configuration", zap.String("config", cfg.String()))
	}

	engine, closeEngine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine()

	if cfg.IsOneShot() {
		return extractOnce(ctx, cfg, engine, stdout, stderr)
	}

	server, err := mcp.NewServer(cfg, engine, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Run(ctx)
}

// newEngine inspects the environment and builds the extraction engine, with
// the result cache attached when a cache directory is configured. The
// returned func releases the cache.
func newEngine(cfg *config.Config, logger *zap.Logger) (*extraction.Engine, func(), error) {
	opts := cfg.ToOptions()
	caps := extraction.DetectCapabilities(wrapper.NewBackendFactory(opts.Backends), cfg.Extraction.OCRLanguage, logger)

	engine, err := extraction.New(opts, caps, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create extraction engine: %w", err)
	}

	closer := func() {}
	if dir := cfg.Extraction.CacheDir; dir != "" {
		cache, err := store.Open(dir, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open result cache: %w", err)
		}
		engine.WithCache(cache)
		closer = func() {
			if err := cache.Close(); err != nil {
				logger.Warn("failed to close result cache", zap.Error(err))
			}
		}
	}
	return engine, closer, nil
}

// extractOnce extracts cfg.Input, writes it in cfg.Format and prints a
// summary to stderr. A document that could not be extracted is still
// written, then reported as an error.
func extractOnce(ctx context.Context, cfg *config.Config, engine *extraction.Engine, stdout, stderr io.Writer) error {
	result, err := engine.ExtractFile(ctx, cfg.Input)
	if err != nil {
		return err
	}

	out, err := format(cfg.Format, engine, result)
	if err != nil {
		return err
	}
	if cfg.Output != "" {
		if err := os.WriteFile(cfg.Output, []byte(out), 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	} else if _, err := io.WriteString(stdout, out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	printSummary(stderr, cfg.Input, result)
	if !result.Extracted {
		return fmt.Errorf("extraction failed: %s", strings.Join(result.Errors, "; "))
	}
	return nil
}

func format(kind string, engine *extraction.Engine, result *model.ExtractionResult) (string, error) {
	switch kind {
	case config.FormatHTML:
		return result.HTML, nil
	case config.FormatMarkdown:
		return engine.Renderer().Markdown(result.Pages)
	default:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode result: %w", err)
		}
		return string(data) + "\n", nil
	}
}

// printSummary writes a short colored report of result
func printSummary(w io.Writer, path string, result *model.ExtractionResult) {
	header := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)
	dim := color.New(color.FgHiBlack)

	header.Fprintf(w, "%s\n", path)
	if !result.Extracted {
		bad.Fprintf(w, "  not extracted\n")
	} else {
		ok.Fprintf(w, "  %s via %s\n", result.ExtractionMethod, result.Structure.Metadata.Backend)
	}

	meta := result.Structure.Metadata
	dim.Fprintf(w, "  pages %d  tables %d  images %d  ocr words %d  %dms\n",
		meta.PageCount, meta.TableCount, meta.ImageCount, meta.OCRWordCount, meta.ProcessingTimeMS)

	for _, e := range result.Errors {
		if result.Extracted {
			warn.Fprintf(w, "  %s\n", e)
		} else {
			bad.Fprintf(w, "  %s\n", e)
		}
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Faithful PDF\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
