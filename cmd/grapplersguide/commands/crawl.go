package commands

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"grapplersguide-dl/internal/components/telemetry"
	"grapplersguide-dl/internal/crawler"
	"grapplersguide-dl/internal/scrapers/grapplersguide"
	"grapplersguide-dl/pkg/restyutil"
)

// withTelemetry sets up otel if a telemetry.json5 is around and returns a
// context canceled on interrupt. The returned func must be called on exit.
func withTelemetry(ctx context.Context) (context.Context, func()) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	tel, err := telemetry.SetupFromEnv(ctx, "grapplersguide-dl")
	if err != nil {
		slog.Warn("failed to setup telemetry, continuing without it", "err", err)
	}
	telemetry.InstrumentPerfStats(ctx)

	return ctx, func() {
		stop()
		err := tel.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	}
}

// allowedDomains is the platform's domains plus the host of a custom base url.
func allowedDomains(cfg Config) []string {
	domains := slices.Clone(grapplersguide.AllowedDomains)
	base, err := url.Parse(cfg.BaseUrl)
	if err != nil || base.Hostname() == "" {
		return domains
	}
	if !crawler.HostAllowed(base.Hostname(), domains) {
		domains = append(domains, base.Hostname())
	}
	return domains
}

func newEngine(cfg Config, processor crawler.ItemProcessor, tel telemetry.API) (*crawler.Engine, error) {
	domains := allowedDomains(cfg)
	opts := crawler.HttpFetcherOptions{
		Timeout:           cfg.Timeout(),
		Retries:           cfg.Retries,
		RequestsPerSecond: cfg.RequestsPerSecond,
		AllowedDomains:    domains,
	}
	if dumpHttp != "" {
		output, err := restyutil.NewFilesystemOutput(dumpHttp)
		if err != nil {
			return nil, err
		}
		opts.Dump = output
	}

	fetcher, err := crawler.NewHttpFetcher(opts, tel)
	if err != nil {
		return nil, err
	}
	return crawler.NewEngine(fetcher, processor, tel, crawler.EngineOptions{
		Concurrency:    cfg.Concurrency,
		AllowedDomains: domains,
	}), nil
}

func newSpider(cfg Config, expertsOnly bool, tel telemetry.API) (*grapplersguide.Spider, error) {
	return grapplersguide.NewSpider(grapplersguide.Options{
		BaseUrl:       cfg.BaseUrl,
		LoginPath:     cfg.LoginPath,
		Username:      cfg.Username,
		Password:      cfg.Password,
		ExpertPattern: cfg.ExpertPattern,
		CoursePattern: cfg.CoursePattern,
		ExpertsOnly:   expertsOnly,
	}, tel)
}
