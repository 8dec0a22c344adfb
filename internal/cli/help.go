package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// addHelpCommands adds help and documentation commands.
func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newExamplesCmd())
	rootCmd.AddCommand(newQuickstartCmd())
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		Long:  "Display examples of common trading workflows.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Common Workflow Examples")
			output.Println()

			examples := []struct {
				title    string
				commands []string
			}{
				{
					title: "One-Shot Scan",
					commands: []string{
						"trader scan                     # Scan configured pairs",
						"trader scan --data ./candles    # Scan against a local data set",
						"trader scan --save              # Persist surviving signals",
						"trader signals                  # Review persisted signals",
					},
				},
				{
					title: "Paper Trading Session",
					commands: []string{
						"trader config validate          # Check configuration first",
						"trader session run              # Run a session in the foreground",
						"trader positions                # Open positions (any terminal)",
						"trader session list             # Review session history",
					},
				},
				{
					title: "Controlling a Session",
					commands: []string{
						"trader session status <id>      # State and open positions",
						"trader session pause <id>       # Suspend scanning",
						"trader session resume <id>      # Pick up where it left off",
						"trader session stop <id>        # Stop cleanly",
					},
				},
				{
					title: "Housekeeping",
					commands: []string{
						"trader session cleanup --days 30 # Drop old session records",
						"trader signals --limit 50        # More signal history",
						"trader config show               # Effective configuration",
					},
				},
			}

			for _, ex := range examples {
				output.Bold(ex.title)
				for _, c := range ex.commands {
					parts := strings.SplitN(c, "#", 2)
					if len(parts) == 2 {
						output.Printf("  %s %s\n", output.Cyan(strings.TrimSpace(parts[0])), output.DimText(strings.TrimSpace(parts[1])))
					} else {
						output.Printf("  %s\n", output.Cyan(c))
					}
				}
				output.Println()
			}

			return nil
		},
	}
}

func newQuickstartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "New user guide",
		Long:  "Step-by-step guide for new users.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("A-Share Trader - Quick Start Guide")
			output.Println()

			steps := []struct {
				step  int
				title string
				desc  string
				cmd   string
			}{
				{
					step:  1,
					title: "Create the Configuration",
					desc:  "The first run writes a config.toml template you can edit.",
					cmd:   "trader config path  # Shows config directory",
				},
				{
					step:  2,
					title: "Configure Pairs",
					desc:  "Add [[trading.pairs]] entries for the correlated instruments to scan.",
					cmd:   "primary = \"600036.SH\", reference = \"601398.SH\"",
				},
				{
					step:  3,
					title: "Provide Candle Data",
					desc:  "Drop <symbol>_<timeframe>.csv files into the data directory.",
					cmd:   "~/.config/ashare-trader/data/600036.SH_1d.csv",
				},
				{
					step:  4,
					title: "Run a Scan",
					desc:  "Check the detectors against your data before trading.",
					cmd:   "trader scan",
				},
				{
					step:  5,
					title: "Start a Paper Session",
					desc:  "Run the full loop with simulated fills. No real money moves.",
					cmd:   "trader session run",
				},
			}

			for _, s := range steps {
				output.Printf("%s Step %d: %s\n", output.Cyan("→"), s.step, output.BoldText(s.title))
				output.Printf("  %s\n", s.desc)
				output.Printf("  %s\n\n", output.DimText(s.cmd))
			}

			output.Bold("Important Notes")
			output.Println()
			output.Printf("  %s Shares bought today cannot be sold until the next trading day (T+1)\n", output.Yellow("⚠"))
			output.Printf("  %s Prices move at most ±10%% per day; stops can gap through\n", output.Yellow("⚠"))
			output.Printf("  %s Always start with trading.mode = \"paper\"\n", output.Yellow("⚠"))

			return nil
		},
	}
}
