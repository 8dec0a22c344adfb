package cli

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ashare-trader/internal/analysis/patterns"
	"ashare-trader/internal/config"
	"ashare-trader/internal/execution"
	"ashare-trader/internal/logging"
	"ashare-trader/internal/marketdata"
	"ashare-trader/internal/models"
	"ashare-trader/internal/signal"
	"ashare-trader/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.SessionStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize SQLite store
	sessionStore, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, some features may be unavailable")
	} else {
		app.Store = sessionStore
		logger.Debug().Str("path", cfg.Store.Path).Msg("SQLite store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "A-Share Trader - PO3 structure trading CLI for the China A-share market",
		Long: `A-Share Trader scans correlated instrument pairs for accumulation,
manipulation, and distribution structures, confirms them with cross-instrument
divergence, and trades them under the exchange's T+1 settlement rules.

Sessions run a continuous scan-and-monitor loop; signals and positions are
persisted so a restarted process resumes where it left off.

Use 'trader help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Handle debug flag
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/ashare-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newSignalsCmd(app))
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newSessionCmd(app))
	addHelpCommands(rootCmd)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("A-Share Trader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Trading Configuration")
	output.Printf("  Mode:            %s\n", cfg.Trading.Mode)
	output.Printf("  Capital:         %.2f\n", cfg.Trading.InitialCapital)
	output.Printf("  Timeframes:      %s\n", strings.Join(cfg.Trading.Timeframes, ", "))
	output.Printf("  Pairs:           %d configured\n", len(cfg.Trading.Pairs))
	output.Printf("  Data Directory:  %s\n", cfg.Trading.DataDir)
	output.Println()

	output.Bold("Risk Configuration")
	output.Printf("  Stop Loss:       %.1f%%\n", cfg.Risk.StopLossPercent)
	output.Printf("  Take Profit:     %.1f%%\n", cfg.Risk.TakeProfitPercent)
	output.Printf("  Max Loss/Trade:  %.1f%%\n", cfg.Risk.MaxLossPerTradePercent)
	output.Printf("  Board Lot:       %d\n", cfg.Risk.BoardLot)
	output.Println()

	output.Bold("Execution Gates")
	output.Printf("  Max Positions:   %d\n", cfg.Execution.MaxPositions)
	output.Printf("  Max Position %%:  %.1f%%\n", cfg.Execution.MaxPositionPercent)
	output.Printf("  Max Daily %%:     %.1f%%\n", cfg.Execution.MaxDailyCapitalPercent)
	output.Printf("  Auto Execute:    %v\n", cfg.Execution.AutoExecute)
	output.Println()

	output.Bold("Signal Filter")
	output.Printf("  Min Strength:    %s\n", cfg.Filter.MinStrength)
	output.Printf("  Long Only:       %v\n", cfg.Filter.LongOnly)
	output.Printf("  Per-Symbol Cap:  %d\n", cfg.Filter.MaxSignalsPerSymbol)
	output.Printf("  Dedup Window:    %ds\n", cfg.Filter.DedupWindowSecs)
	output.Println()

	output.Bold("Store")
	output.Printf("  Database:        %s\n", cfg.Store.Path)

	return nil
}

// timeframesFromConfig parses the configured timeframe strings, dropping any
// it does not recognize.
func (a *App) timeframesFromConfig() []models.Timeframe {
	var out []models.Timeframe
	for _, s := range a.Config.Trading.Timeframes {
		tf, err := models.ParseTimeframe(s)
		if err != nil {
			a.Logger.Warn().Str("timeframe", s).Msg("Unknown timeframe in config, skipping")
			continue
		}
		out = append(out, tf)
	}
	if len(out) == 0 {
		out = []models.Timeframe{models.TimeframeD1}
	}
	return out
}

func (a *App) pairsFromConfig() []models.Pair {
	pairs := make([]models.Pair, 0, len(a.Config.Trading.Pairs))
	for _, p := range a.Config.Trading.Pairs {
		pairs = append(pairs, models.Pair{
			Primary:   p.Primary,
			Reference: p.Reference,
			Name:      p.Name,
		})
	}
	return pairs
}

// newSignalEngine assembles the detection stack over the given bar source.
func (a *App) newSignalEngine(bars marketdata.BarSource) *signal.Engine {
	cfg := a.Config
	structure := patterns.NewStructureDetector(patterns.StructureConfig{
		MinAccumulationBars:   cfg.Structure.MinAccumulationBars,
		ManipulationThreshold: cfg.Structure.ManipulationThreshold,
		ATRPeriod:             cfg.Structure.ATRPeriod,
	})
	divergence := patterns.NewDivergenceDetector(patterns.DivergenceConfig{
		LookbackPeriod:     cfg.Divergence.LookbackPeriod,
		MinSwingSeparation: cfg.Divergence.MinSwingSeparation,
	})
	return signal.NewEngine(signal.EngineConfig{
		Timeframes:       a.timeframesFromConfig(),
		Pairs:            a.pairsFromConfig(),
		RequireAlignment: cfg.Engine.RequireAlignment,
		SignalExpiry:     time.Duration(cfg.Engine.SignalExpiryMinutes) * time.Minute,
	}, structure, divergence, bars, a.Logger)
}

func (a *App) newValidator() *signal.Validator {
	cfg := a.Config.Validator
	return signal.NewValidator(signal.ValidatorConfig{
		MinRiskReward:         cfg.MinRiskReward,
		MaxRiskPercent:        cfg.MaxRiskPercent,
		RequireStructure:      cfg.RequireStructure,
		RequireDivergence:     cfg.RequireDivergence,
		MinTimeframeAlignment: cfg.MinTimeframeAlignment,
	})
}

func (a *App) newFilter() *signal.Filter {
	cfg := a.Config.Filter
	return signal.NewFilter(signal.FilterConfig{
		MinStrength:         strengthFromName(cfg.MinStrength),
		LongOnly:            cfg.LongOnly,
		MaxSignalsPerSymbol: cfg.MaxSignalsPerSymbol,
		DedupWindow:         time.Duration(cfg.DedupWindowSecs) * time.Second,
	})
}

// newExecutionEngine assembles the paper execution stack. Live brokerage
// wiring would slot in here behind the same TradingExecutor interface.
func (a *App) newExecutionEngine(bars marketdata.BarSource, calendar *execution.MarketCalendar) *execution.Engine {
	cfg := a.Config
	risk := execution.NewRiskManager(execution.T1RiskConfig{
		StopLossPercent:        cfg.Risk.StopLossPercent,
		TakeProfitPercent:      cfg.Risk.TakeProfitPercent,
		MaxLossPerTradePercent: cfg.Risk.MaxLossPerTradePercent,
		MaxPositionPercent:     cfg.Execution.MaxPositionPercent,
		BoardLot:               cfg.Risk.BoardLot,
	})
	executor := execution.NewPaperExecutor(bars, cfg.Trading.InitialCapital)
	return execution.NewEngine(execution.EngineConfig{
		MaxPositions:           cfg.Execution.MaxPositions,
		MaxPositionPercent:     cfg.Execution.MaxPositionPercent,
		MaxDailyCapitalPercent: cfg.Execution.MaxDailyCapitalPercent,
		AutoExecute:            cfg.Execution.AutoExecute,
	}, risk, executor, calendar, cfg.Trading.InitialCapital, a.Logger)
}

func strengthFromName(name string) models.SignalStrength {
	switch strings.ToLower(name) {
	case "weak":
		return models.StrengthWeak
	case "strong":
		return models.StrengthStrong
	case "verystrong", "very_strong":
		return models.StrengthVeryStrong
	default:
		return models.StrengthMedium
	}
}
