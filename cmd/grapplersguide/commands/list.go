package commands

import (
	"context"
	"fmt"
	"time"

	"grapplersguide-dl/internal/manifest"
	"grapplersguide-dl/pkg/serviceutil"
	"grapplersguide-dl/pkg/textutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list [--expert <pattern>] [--course <pattern>]",
	Short: "Lists the videos recorded in the manifest.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd, configPath)
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		exitOnError(runList(cmd.Context(), cfg))
	},
}

func runList(ctx context.Context, cfg Config) error {
	expertPattern, err := textutil.CompilePattern(cfg.ExpertPattern)
	if err != nil {
		return failed("invalid expert pattern", err)
	}
	coursePattern, err := textutil.CompilePattern(cfg.CoursePattern)
	if err != nil {
		return failed("invalid course pattern", err)
	}

	ledger, err := manifest.Open(cfg.Manifest)
	if err != nil {
		return failed("failed to open manifest", err)
	}
	defer ledger.Close()

	entries, err := ledger.List(ctx)
	if err != nil {
		return failed("failed to list manifest", err)
	}

	t := serviceutil.NewTable()
	t.AppendHeader(table.Row{"Expert", "Course", "Lesson", "Quality", "Size", "Downloaded", "Path"})
	for _, e := range entries {
		if !expertPattern.MatchString(e.Expert) || !coursePattern.MatchString(e.Course) {
			continue
		}
		t.AppendRow(table.Row{
			e.Expert,
			e.Course,
			fmt.Sprintf("%02d.%02d - %s", e.SectionPosition, e.LessonPosition, e.LessonTitle),
			fmt.Sprintf("%s (%dx%d)", e.PublicName, e.Width, e.Height),
			e.Size,
			e.DownloadedAt.Format(time.DateTime),
			e.Path,
		})
	}
	t.Render()
	return nil
}
