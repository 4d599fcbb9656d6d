package serviceutil

import (
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Fatal logs the error and exits, for use in main packages only.
func Fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

// NewTable returns a table that renders to stdout.
func NewTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
