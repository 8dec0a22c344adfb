package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ashare-trader/internal/session"
	"ashare-trader/internal/store"
	"ashare-trader/pkg/utils"
)

// newPositionsCmd lists open positions from the store.
func newPositionsCmd(app *App) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List open positions",
		Long: `Lists open positions recorded in the store. Without --session, positions
of every active session are shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			recs, err := openPositions(cmd.Context(), app.Store, sessionID)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(recs)
			}
			if len(recs) == 0 {
				output.Dim("No open positions.")
				return nil
			}

			table := NewTable(output, "SYMBOL", "QTY", "ENTRY", "CURRENT", "STOP", "TARGET", "P&L", "ENTRY DATE", "SESSION")
			var totalPnL float64
			for _, rec := range recs {
				pnl := (rec.CurrentPrice - rec.EntryPrice) * float64(rec.Quantity)
				totalPnL += pnl
				table.AddRow(
					rec.Symbol,
					utils.FormatQuantity(rec.Quantity),
					fmt.Sprintf("%.2f", rec.EntryPrice),
					fmt.Sprintf("%.2f", rec.CurrentPrice),
					fmt.Sprintf("%.2f", rec.StopLoss),
					fmt.Sprintf("%.2f", rec.TakeProfit),
					output.FormatPnL(pnl),
					rec.EntryDate,
					shortID(rec.SessionID),
				)
			}
			table.Render()
			output.Println()
			output.Printf("Unrealized P&L: %s\n", output.FormatPnL(totalPnL))
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "restrict to one session")
	return cmd
}

func openPositions(ctx context.Context, st store.SessionStore, sessionID string) ([]*store.PositionRecord, error) {
	if sessionID != "" {
		return st.GetOpenPositions(ctx, sessionID)
	}
	sessions, err := st.GetSessions(ctx, store.SessionFilter{
		States: []string{
			string(session.StateStarting),
			string(session.StateRunning),
			string(session.StatePaused),
		},
	})
	if err != nil {
		return nil, err
	}
	var recs []*store.PositionRecord
	for _, s := range sessions {
		positions, err := st.GetOpenPositions(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		recs = append(recs, positions...)
	}
	return recs, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
