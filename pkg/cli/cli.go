// Package cli provides the command-line interface for scenario-runner.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags returns the flags available to all commands.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Usage:   "Enable verbose logging",
			EnvVars: []string{"SCENARIO_VERBOSE"},
		},
		&cli.BoolFlag{
			Name:  "no-ansi",
			Usage: "Disable ANSI colors",
		},
	}
}

// NewApp builds the scenario-runner application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "scenario-runner",
		Usage:   "Browser-driven end-to-end scenarios for the TodoMVC Vue demo",
		Version: Version,
		Description: `Scenario Runner loads a target page, performs scripted user actions and
checks the page with polling assertions. Every scenario runs in its own
browser context.

Examples:
  scenario-runner install
  scenario-runner test
  scenario-runner test scenarios/ --filter "add" --retries 1
  scenario-runner test --driver mock --parallel 4
  scenario-runner list --include-tags smoke`,
		Flags: GlobalFlags(),
		Commands: []*cli.Command{
			newTestCommand(),
			newListCommand(),
			newInstallCommand(),
			newReportCommand(),
		},
	}
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the run; scenarios not
// yet started are reported as skipped and the exit status is 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
