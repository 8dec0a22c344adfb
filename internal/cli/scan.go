package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ashare-trader/internal/marketdata"
	"ashare-trader/internal/models"
	"ashare-trader/internal/signal"
	"ashare-trader/internal/store"
)

// newScanCmd creates the one-shot scan command. It runs the detectors once
// over the configured pairs and prints the surviving signals.
func newScanCmd(app *App) *cobra.Command {
	var (
		dataDir string
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one signal scan over the configured pairs",
		Long: `Runs the structure and divergence detectors once for every configured
pair and prints the signals that survive validation and filtering.

Candles are read from CSV files named <symbol>_<timeframe>.csv in the data
directory. Use --save to persist the surviving signals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if len(app.Config.Trading.Pairs) == 0 {
				output.Warning("No pairs configured. Add [[trading.pairs]] entries to config.toml.")
				return nil
			}
			if dataDir == "" {
				dataDir = app.Config.Trading.DataDir
			}

			bars := marketdata.NewCSVSource(dataDir)
			engine := app.newSignalEngine(bars)
			validator := app.newValidator()
			filter := app.newFilter()

			signals := engine.Scan(cmd.Context())

			type scanned struct {
				Signal *models.TradingSignal    `json:"signal"`
				Result *signal.ValidationResult `json:"validation"`
				Kept   bool                     `json:"kept"`
				Reason string                   `json:"reason,omitempty"`
			}
			results := make([]scanned, 0, len(signals))
			for _, sig := range signals {
				res := validator.Validate(sig)
				entry := scanned{Signal: sig, Result: res, Kept: res.Valid}
				if !res.Valid {
					entry.Reason = res.Reason
				} else if ok, reason := filter.Accept(sig); !ok {
					entry.Kept = false
					entry.Reason = reason
				}
				results = append(results, entry)
			}

			if output.IsJSON() {
				return output.JSON(results)
			}

			color.Cyan("📊 Signal Scan (%d pairs, %d timeframes)", len(app.Config.Trading.Pairs), len(app.Config.Trading.Timeframes))
			fmt.Println()

			if len(results) == 0 {
				color.Yellow("No structures detected.")
				return nil
			}

			kept := 0
			for _, r := range results {
				sig := r.Signal
				marker := color.GreenString("✓")
				if !r.Kept {
					marker = color.RedString("✗")
				}
				fmt.Printf("%s %-10s %-5s %-10s entry %.2f  stop %.2f  target %.2f  R:R %.1f\n",
					marker, sig.Symbol, sig.Direction, sig.Strength, sig.EntryPrice, sig.StopLoss, sig.TakeProfit, sig.RiskReward())
				if sig.Notes != "" {
					fmt.Printf("  %s\n", sig.Notes)
				}
				if !r.Kept {
					fmt.Printf("  rejected: %s\n", r.Reason)
					continue
				}
				kept++
				if save && app.Store != nil {
					if err := app.Store.SaveSignal(cmd.Context(), signalRecord(sig)); err != nil {
						output.Warning("Failed to save signal %s: %v", sig.ID, err)
					}
				}
			}

			fmt.Println()
			if kept > 0 {
				color.Green("✓ %d signal(s) passed validation", kept)
				if save {
					color.Green("✓ Saved to %s", app.Config.Store.Path)
				}
			} else {
				color.Yellow("All detected signals were rejected")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data", "", "candle CSV directory (default: configured data_dir)")
	cmd.Flags().BoolVar(&save, "save", false, "persist surviving signals to the store")
	return cmd
}

func signalRecord(sig *models.TradingSignal) *store.SignalRecord {
	return &store.SignalRecord{
		ID:         sig.ID,
		Symbol:     sig.Symbol,
		Direction:  string(sig.Direction),
		Strength:   sig.Strength.String(),
		EntryPrice: sig.EntryPrice,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Notes:      sig.Notes,
		Timestamp:  sig.Timestamp,
	}
}

// newSignalsCmd lists recently persisted signals.
func newSignalsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "signals",
		Short: "List recently persisted signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			recs, err := app.Store.GetRecentSignals(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(recs)
			}
			if len(recs) == 0 {
				output.Dim("No signals recorded.")
				return nil
			}

			table := NewTable(output, "TIME", "SYMBOL", "DIR", "STRENGTH", "ENTRY", "STOP", "TARGET")
			for _, rec := range recs {
				dir := rec.Direction
				if strings.EqualFold(dir, "LONG") {
					dir = output.Green(dir)
				} else {
					dir = output.Red(dir)
				}
				table.AddRow(
					rec.Timestamp.Format("01-02 15:04"),
					rec.Symbol,
					dir,
					rec.Strength,
					fmt.Sprintf("%.2f", rec.EntryPrice),
					fmt.Sprintf("%.2f", rec.StopLoss),
					fmt.Sprintf("%.2f", rec.TakeProfit),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum signals to show")
	return cmd
}
