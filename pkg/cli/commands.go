package cli

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/scenario-runner/pkg/config"
	"github.com/devicelab-dev/scenario-runner/pkg/driver/browser"
	"github.com/devicelab-dev/scenario-runner/pkg/report"
	"github.com/urfave/cli/v2"
)

func newListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List the scenarios a test run would execute",
		ArgsUsage: "[scenario-file-or-folder]...",
		Flags:     selectionFlags(),
		Action: func(c *cli.Context) error {
			ws, configPath, err := loadWorkspaceConfig(c.String("config"))
			if err != nil {
				return err
			}
			con := newConsole(c, false)

			flows, err := validateAndParseFlows(buildSelection(c, ws, configPath), con)
			if err != nil {
				return err
			}
			for i, f := range flows {
				tags := ""
				if len(f.Config.Tags) > 0 {
					tags = fmt.Sprintf(" %s[%s]%s", con.color(colorGray), strings.Join(f.Config.Tags, ", "), con.color(colorReset))
				}
				con.printf("  %2d. %s%s%s (%s)%s\n", i+1, con.color(colorBold), f.Name(), con.color(colorReset), f.SourcePath, tags)
			}
			con.printf("\n  %d scenario%s\n", len(flows), plural(len(flows), "", "s"))
			return nil
		},
	}
}

func newInstallCommand() *cli.Command {
	return &cli.Command{
		Name:  "install",
		Usage: "Download the Playwright driver and browsers",
		Description: `Installs into <home>/drivers/playwright. Set SCENARIO_RUNNER_HOME to move <home>.

Examples:
  scenario-runner install
  scenario-runner install --browser chromium --browser firefox`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "browser",
				Usage: "Browser engines to install (chromium, firefox, webkit)",
				Value: cli.NewStringSlice(config.DefaultBrowser),
			},
		},
		Action: func(c *cli.Context) error {
			con := newConsole(c, false)
			browsers := c.StringSlice("browser")
			dir := config.GetDriversDir("playwright")

			con.printf("  %s⏳ Installing %s into %s...%s\n",
				con.color(colorCyan), strings.Join(browsers, ", "), dir, con.color(colorReset))
			if err := browser.Install(dir, browsers); err != nil {
				return err
			}
			con.printf("  %s✓ Installed%s\n", con.color(colorGreen), con.color(colorReset))
			return nil
		},
	}
}

func newReportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Print a report directory and regenerate its HTML",
		ArgsUsage: "<report-dir>",
		Description: `Reads the report of a finished or interrupted run and rewrites report.html.
Scenarios an interrupted run never finished are marked before printing.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "html",
				Usage: "Write the HTML report here (default: <report-dir>/report.html)",
			},
			&cli.BoolFlag{
				Name:  "embed-assets",
				Usage: "Inline screenshots into the HTML report",
			},
			&cli.BoolFlag{
				Name:  "allure",
				Usage: "Also write Allure results to <report-dir>/allure-results",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("report requires exactly one report directory", 2)
			}
			dir := c.Args().First()
			con := newConsole(c, false)

			if err := report.Recover(dir); err != nil {
				return fmt.Errorf("failed to read report: %w", err)
			}
			htmlPath := c.String("html")
			if err := report.GenerateHTML(dir, report.HTMLConfig{
				OutputPath:  htmlPath,
				EmbedAssets: c.Bool("embed-assets"),
			}); err != nil {
				con.warnf("failed to generate HTML report: %v", err)
			}
			if c.Bool("allure") {
				if err := report.GenerateAllure(dir); err != nil {
					con.warnf("failed to generate Allure results: %v", err)
				}
			}

			index, flows, err := report.ReadReport(dir)
			if err != nil {
				return fmt.Errorf("failed to read report: %w", err)
			}
			con.printReport(index, flows)

			if index.Summary.Failed > 0 {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}
