package commands

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"grapplersguide-dl/internal/components/telemetry"
	"grapplersguide-dl/internal/manifest"
	"grapplersguide-dl/internal/pipelines"
	"grapplersguide-dl/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(downloadCmd)
}

var downloadCmd = &cobra.Command{
	Use:   "download [--expert <pattern>] [--course <pattern>] [-o <dir>]",
	Short: "Downloads the highest quality video of every matching lesson and writes an index.md.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd, configPath)
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		exitOnError(runDownload(cmd.Context(), cfg))
	},
}

func runDownload(ctx context.Context, cfg Config) error {
	err := requireCredentials(cfg)
	if err != nil {
		return failed("missing credentials", err)
	}

	ctx, cleanup := withTelemetry(ctx)
	defer cleanup()

	tel := telemetry.SlogAPI{}

	ledger, err := manifest.Open(cfg.Manifest)
	if err != nil {
		return failed("failed to open manifest", err)
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			slog.Warn("failed to close manifest", "err", err)
		}
	}()

	files, err := pipelines.NewVideoFiles(pipelines.VideoFilesOptions{
		Dir:      cfg.OutputDir,
		Layout:   cfg.Layout(),
		Retries:  cfg.Retries,
		Manifest: ledger,
	}, tel)
	if err != nil {
		return failed("failed to create video pipeline", err)
	}
	mode, _ := pipelines.ParseIndexMode(cfg.IndexMode)
	index, err := pipelines.NewIndex(filepath.Join(cfg.OutputDir, "index.md"), mode, tel)
	if err != nil {
		return failed("failed to create index", err)
	}
	chain := pipelines.NewChain(files, index)
	defer func() {
		if err := chain.Close(); err != nil {
			slog.Warn("failed to close pipelines", "err", err)
		}
	}()

	spider, err := newSpider(cfg, false, tel)
	if err != nil {
		return failed("failed to create spider", err)
	}
	engine, err := newEngine(cfg, chain, tel)
	if err != nil {
		return failed("failed to create crawler", err)
	}

	slog.Info(
		"crawling",
		"site", cfg.BaseUrl,
		"username", cfg.Username,
		"output", cfg.OutputDir,
		"layout", cfg.Layout().String(),
	)
	start := time.Now()
	runErr := engine.Run(ctx, spider)

	stats := engine.Stats()
	t := serviceutil.NewTable()
	t.AppendHeader(table.Row{"Requests", "Filtered", "Failed", "Videos", "Dropped", "Elapsed"})
	t.AppendRow(table.Row{
		stats.Requests.Load(),
		stats.Filtered.Load(),
		stats.Failed.Load(),
		stats.Items.Load(),
		stats.Dropped.Load(),
		time.Since(start).Round(time.Second).String(),
	})
	t.Render()

	if runErr != nil {
		return failed("crawl stopped", runErr)
	}
	return nil
}
