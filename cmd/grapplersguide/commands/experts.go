package commands

import (
	"context"
	"slices"
	"strings"
	"sync"

	"grapplersguide-dl/internal/catalog"
	"grapplersguide-dl/internal/components/telemetry"
	"grapplersguide-dl/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(expertsCmd)
}

type expertCollector struct {
	mutex   sync.Mutex
	experts []catalog.Expert
}

func (c *expertCollector) Process(ctx context.Context, item any) error {
	expert, ok := item.(catalog.Expert)
	if !ok {
		return nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.experts = append(c.experts, expert)
	return nil
}

var expertsCmd = &cobra.Command{
	Use:   "experts [--expert <pattern>]",
	Short: "Logs in and lists the experts available to the account.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd, configPath)
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		exitOnError(runExperts(cmd.Context(), cfg))
	},
}

func runExperts(ctx context.Context, cfg Config) error {
	err := requireCredentials(cfg)
	if err != nil {
		return failed("missing credentials", err)
	}

	ctx, cleanup := withTelemetry(ctx)
	defer cleanup()

	tel := telemetry.SlogAPI{}
	spider, err := newSpider(cfg, true, tel)
	if err != nil {
		return failed("failed to create spider", err)
	}
	collector := &expertCollector{}
	engine, err := newEngine(cfg, collector, tel)
	if err != nil {
		return failed("failed to create crawler", err)
	}

	err = engine.Run(ctx, spider)
	if err != nil {
		return failed("failed to list experts", err)
	}

	slices.SortFunc(collector.experts, func(a, b catalog.Expert) int {
		return strings.Compare(a.Name, b.Name)
	})
	t := serviceutil.NewTable()
	t.AppendHeader(table.Row{"Expert"})
	for _, e := range collector.experts {
		t.AppendRow(table.Row{e.Name})
	}
	t.Render()
	return nil
}
