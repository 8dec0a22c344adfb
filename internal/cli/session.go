package cli

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ashare-trader/internal/execution"
	"ashare-trader/internal/marketdata"
	"ashare-trader/internal/monitor"
	"ashare-trader/internal/session"
)

// tradingStack bundles the components a live trading process needs. Loops
// are tracked per session so the foreground command can stream their events.
type tradingStack struct {
	manager   *session.Manager
	recoverer *session.Recoverer
	engine    *execution.Engine

	mu    sync.Mutex
	loops map[string]*monitor.TradingLoop
}

func (s *tradingStack) loop(sessionID string) *monitor.TradingLoop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loops[sessionID]
}

// newTradingStack assembles the scan/execute/monitor pipeline over the
// configured CSV data directory.
func (a *App) newTradingStack() (*tradingStack, error) {
	if a.Store == nil {
		return nil, fmt.Errorf("store unavailable")
	}

	cfg := a.Config
	bars := marketdata.NewCSVSource(cfg.Trading.DataDir)
	calendar := execution.NewMarketCalendar()
	engine := a.newExecutionEngine(bars, calendar)
	prices := monitor.NewPriceMonitor(monitor.PriceMonitorConfig{
		TrailPercent:    cfg.Loop.TrailingStopPercent,
		HardStopPercent: cfg.Loop.HardStopPercent,
	}, bars, engine, a.Logger)

	loopCfg := monitor.LoopConfig{
		ScanInterval:  time.Duration(cfg.Loop.ScanIntervalSecs) * time.Second,
		PriceInterval: time.Duration(cfg.Loop.PriceCheckIntervalSecs) * time.Second,
		AutoExecute:   cfg.Execution.AutoExecute,
		// Paper sessions replay data and may run outside exchange hours.
		IgnoreMarketHours: cfg.IsPaperMode(),
	}

	stack := &tradingStack{
		engine: engine,
		loops:  make(map[string]*monitor.TradingLoop),
	}
	factory := func(sessionID string) session.Runner {
		loop := monitor.NewTradingLoop(
			sessionID,
			loopCfg,
			a.newSignalEngine(bars),
			a.newValidator(),
			a.newFilter(),
			engine,
			prices,
			a.Store,
			a.Logger,
		)
		stack.mu.Lock()
		stack.loops[sessionID] = loop
		stack.mu.Unlock()
		return loop
	}

	stack.manager = session.NewManager(a.Store, factory, a.Logger)
	stack.recoverer = session.NewRecoverer(a.Store, stack.manager, engine, a.Logger)
	return stack, nil
}

func newSessionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Trading session management",
		Long: `Create and control trading sessions. A session owns one trading loop;
its state and positions are persisted so an interrupted process can recover.`,
	}

	cmd.AddCommand(newSessionRunCmd(app))
	cmd.AddCommand(newSessionListCmd(app))
	cmd.AddCommand(newSessionStatusCmd(app))
	cmd.AddCommand(newSessionStopCmd(app))
	cmd.AddCommand(newSessionPauseCmd(app))
	cmd.AddCommand(newSessionResumeCmd(app))
	cmd.AddCommand(newSessionCleanupCmd(app))
	return cmd
}

// newSessionRunCmd creates and runs a session in the foreground until
// interrupted. Prior active sessions are recovered first.
func newSessionRunCmd(app *App) *cobra.Command {
	var resumeID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a trading session in the foreground",
		Long: `Recovers any sessions that were active when the process last exited,
then creates and starts a new session (or restarts the one given with
--session). The loop runs until interrupted; Ctrl-C stops it cleanly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			stack, err := app.newTradingStack()
			if err != nil {
				return err
			}

			report, err := stack.recoverer.Recover(ctx)
			if err != nil {
				return err
			}
			if len(report.Resumed) > 0 || len(report.StillPaused) > 0 {
				color.Cyan("♻ Recovery: %d resumed, %d paused, %d positions re-attached",
					len(report.Resumed), len(report.StillPaused), report.ReattachedPositions)
			}

			sessionID := resumeID
			if sessionID == "" {
				pairNames := make([]string, 0, len(app.Config.Trading.Pairs))
				for _, p := range app.Config.Trading.Pairs {
					pairNames = append(pairNames, p.Primary)
				}
				info, err := stack.manager.Create(ctx, session.Config{
					Mode:         app.Config.Trading.Mode,
					Pairs:        pairNames,
					ScanInterval: time.Duration(app.Config.Loop.ScanIntervalSecs) * time.Second,
				})
				if err != nil {
					return err
				}
				sessionID = info.ID
			}

			if err := stack.manager.Start(ctx, sessionID); err != nil {
				return err
			}
			color.Green("✓ Session %s running (%s mode)", shortID(sessionID), app.Config.Trading.Mode)
			color.Cyan("  Scanning %d pairs every %ds. Ctrl-C to stop.",
				len(app.Config.Trading.Pairs), app.Config.Loop.ScanIntervalSecs)

			interrupt := make(chan os.Signal, 1)
			ossignal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

			loop := stack.loop(sessionID)
			var events <-chan monitor.Event
			if loop != nil {
				events = loop.Events()
			}

		runLoop:
			for {
				select {
				case <-interrupt:
					break runLoop
				case <-ctx.Done():
					break runLoop
				case ev := <-events:
					printEvent(output, ev)
				}
			}

			output.Println()
			output.Info("Stopping session...")
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := stack.manager.Stop(stopCtx, sessionID); err != nil {
				output.Error("Stop failed: %v", err)
				return err
			}
			color.Green("✓ Session stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&resumeID, "session", "", "restart an existing session instead of creating one")
	return cmd
}

func printEvent(output *Output, ev monitor.Event) {
	stamp := ev.Timestamp.Format("15:04:05")
	switch ev.Type {
	case monitor.EventSignal:
		output.Info("[%s] SIGNAL %s: %s", stamp, ev.Symbol, ev.Message)
	case monitor.EventSignalRejected:
		output.Dim("[%s] rejected %s: %s", stamp, ev.Symbol, ev.Message)
	case monitor.EventPositionOpened:
		output.Success("[%s] OPENED %s", stamp, ev.Symbol)
	case monitor.EventPositionClosed:
		output.Warning("[%s] CLOSED %s (%s)", stamp, ev.Symbol, ev.Message)
	case monitor.EventError:
		output.Error("[%s] %s: %s", stamp, ev.Symbol, ev.Message)
	}
}

func newSessionListCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			stack, err := app.newTradingStack()
			if err != nil {
				return err
			}

			infos, err := stack.manager.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(infos)
			}
			if len(infos) == 0 {
				output.Dim("No sessions recorded.")
				return nil
			}

			table := NewTable(output, "ID", "STATE", "MODE", "CREATED", "UPDATED", "ERROR")
			for _, info := range infos {
				table.AddRow(
					shortID(info.ID),
					output.SessionState(string(info.State)),
					info.Mode,
					info.CreatedAt.Format("2006-01-02 15:04"),
					info.UpdatedAt.Format("2006-01-02 15:04"),
					info.ErrorMessage,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to show")
	return cmd
}

func newSessionStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show one session's state and open positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			stack, err := app.newTradingStack()
			if err != nil {
				return err
			}

			info, err := stack.manager.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			positions, err := app.Store.GetOpenPositions(cmd.Context(), info.ID)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"session":   info,
					"positions": positions,
				})
			}

			lines := []string{
				fmt.Sprintf("State:     %s", output.SessionState(string(info.State))),
				fmt.Sprintf("Mode:      %s", info.Mode),
				fmt.Sprintf("Created:   %s", info.CreatedAt.Format(time.RFC3339)),
				fmt.Sprintf("Updated:   %s", info.UpdatedAt.Format(time.RFC3339)),
				fmt.Sprintf("Positions: %d open", len(positions)),
			}
			if info.ErrorMessage != "" {
				lines = append(lines, fmt.Sprintf("Error:     %s", output.Red(info.ErrorMessage)))
			}
			output.Box("Session "+shortID(info.ID), lines)
			return nil
		},
	}
}

func newSessionStopCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <session-id>",
		Short: "Stop a running or paused session",
		Args:  cobra.ExactArgs(1),
		RunE:  sessionTransition(app, "stopped", (*session.Manager).Stop),
	}
}

func newSessionPauseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <session-id>",
		Short: "Pause a running session",
		Args:  cobra.ExactArgs(1),
		RunE:  sessionTransition(app, "paused", (*session.Manager).Pause),
	}
}

func newSessionResumeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume a paused session",
		Args:  cobra.ExactArgs(1),
		RunE:  sessionTransition(app, "resumed", (*session.Manager).Resume),
	}
}

// sessionTransition wraps a one-word manager transition as a cobra RunE.
func sessionTransition(app *App, verb string, op func(*session.Manager, context.Context, string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		stack, err := app.newTradingStack()
		if err != nil {
			return err
		}
		if err := op(stack.manager, cmd.Context(), args[0]); err != nil {
			return err
		}
		output.Success("✓ Session %s %s", shortID(args[0]), verb)
		return nil
	}
}

func newSessionCleanupCmd(app *App) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete sessions older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			stack, err := app.newTradingStack()
			if err != nil {
				return err
			}

			cutoff := time.Now().AddDate(0, 0, -days)
			deleted, err := stack.manager.CleanupBefore(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"deleted": deleted})
			}
			output.Success("✓ Deleted %d session(s) older than %d days", deleted, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "delete sessions created more than this many days ago")
	return cmd
}
