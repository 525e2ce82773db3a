package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trade-journal/internal/config"
	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/journal"
	"trade-journal/internal/logging"
	"trade-journal/internal/store"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Trades   store.TradeStore
	Profiles store.ProfileStore

	service *journal.Service
}

// Service returns the import service, building it on first use.
func (a *App) Service() (*journal.Service, error) {
	if a.Trades == nil {
		return nil, apperrors.ErrStoreUnavailable
	}
	if a.service != nil {
		return a.service, nil
	}

	opts := []journal.Option{journal.WithLogger(a.Logger)}
	if a.Config != nil {
		loc, err := a.Config.Location()
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			journal.WithMultipliers(a.Config.ContractMultipliers()),
			journal.WithLocation(loc),
			journal.WithMatchWindow(a.Config.Import.MatchWindow),
			journal.WithImportedTag(a.Config.Import.ImportedTag),
		)
	}

	a.service = journal.NewService(a.Trades, a.Profiles, opts...)
	return a.service, nil
}

func (a *App) profileStore() (store.ProfileStore, error) {
	if a.Profiles == nil {
		return nil, apperrors.ErrStoreUnavailable
	}
	return a.Profiles, nil
}

// Close releases the trade store.
func (a *App) Close() error {
	if a.Trades == nil {
		return nil
	}
	return a.Trades.Close()
}

// NewRootCmd creates the root command for the CLI. Config, logger and
// store are set up from the --config directory before any subcommand runs.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithApp(&App{Logger: zerolog.Nop()})
}

// NewRootCmdWithApp creates the root command around app. Dependencies
// already set on app are kept, which lets tests inject a memory store.
func NewRootCmdWithApp(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "journal",
		Short: "Trade journal - import and review futures trades",
		Long: `Trade journal keeps a local history of your futures trades.

Broker CSV exports (Tradovate, NinjaTrader, TradingView or a custom
profile) are imported, enriched with risk metrics and merged into the
existing history without creating duplicates.

Use 'journal import --dry-run <file>' to preview an import.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/trade-journal)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addImportCommands(rootCmd, app)
	addProfileCommands(rootCmd, app)
	addTradeCommands(rootCmd, app)

	return rootCmd
}

func (a *App) setup(cmd *cobra.Command) error {
	if a.Config == nil {
		dir, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		a.Config = cfg
		a.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}

	if a.Trades == nil && cmd.Annotations["store"] == "true" {
		db, err := store.NewSQLiteStore(a.Config.Database.Path)
		if err != nil {
			a.Logger.Warn().Err(err).Str("path", a.Config.Database.Path).Msg("Failed to initialize store")
			return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
		}
		a.Trades = db
		a.Profiles = db
		a.Logger.Debug().Str("path", a.Config.Database.Path).Msg("SQLite store initialized")
	}
	return nil
}

// storeCommand marks cmd as needing the trade store.
func storeCommand(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations["store"] = "true"
	return cmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Trade Journal v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.Path(app.Config.Dir())
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Import")
	output.Printf("  Default Profile: %s\n", cfg.Import.DefaultProfile)
	output.Printf("  Default Account: %s\n", cfg.Import.DefaultAccount)
	output.Printf("  Match Window:    %s\n", cfg.Import.MatchWindow)
	output.Printf("  Imported Tag:    %s\n", cfg.Import.ImportedTag)
	output.Printf("  Timezone:        %s\n", cfg.Import.Timezone)
	output.Println()

	output.Bold("Contract Multipliers")
	multipliers := cfg.ContractMultipliers()
	markets := make([]string, 0, len(multipliers))
	for m := range multipliers {
		markets = append(markets, m)
	}
	sort.Strings(markets)
	for _, m := range markets {
		output.Printf("  %-6s %s\n", m, FormatCurrency(multipliers[m]))
	}
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database: %s\n", cfg.Database.Path)
	output.Printf("  Log File: %s\n", cfg.Logging.FilePath)
	output.Printf("  Log Level: %s\n", strings.ToLower(cfg.Logging.Level))
}
