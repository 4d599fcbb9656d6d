package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"grapplersguide-dl/internal/components/telemetry"
	"grapplersguide-dl/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	dumpHttp   string
)

var rootCmd = &cobra.Command{
	Use:   "grapplersguide",
	Short: "grapplersguide downloads the course videos of a grapplersguide account.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(os.Stderr, verbose)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log debug output.")
	flags.StringVar(&configPath, "config", "config.json5", "The config file, a <name>.local.json5 next to it overrides it.")
	flags.StringVar(&dumpHttp, "dump-http", "", "Write every http exchange of the crawl to this directory.")
	registerConfigFlags(rootCmd)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandError pairs an error with the message it is reported under.
type commandError struct {
	message string
	err     error
}

func (e commandError) Error() string {
	return fmt.Sprintf("%s: %s", e.message, e.err.Error())
}

func (e commandError) Unwrap() error {
	return e.err
}

func failed(message string, err error) error {
	return commandError{message: message, err: err}
}

// exitOnError exits through serviceutil.Fatal. Commands return their errors
// up to here so their deferred cleanup has already run.
func exitOnError(err error) {
	if err == nil {
		return
	}
	var cmdErr commandError
	if errors.As(err, &cmdErr) {
		serviceutil.Fatal(cmdErr.message, cmdErr.err)
	}
	serviceutil.Fatal("command failed", err)
}
