package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

// addTradeCommands adds trade history commands.
func addTradeCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Review journaled trades",
		Long:  "List, inspect and delete trades in the journal.",
	}

	cmd.AddCommand(storeCommand(newTradesListCmd(app)))
	cmd.AddCommand(storeCommand(newTradesShowCmd(app)))
	cmd.AddCommand(storeCommand(newTradesDeleteCmd(app)))

	rootCmd.AddCommand(cmd)
}

func newTradesListCmd(app *App) *cobra.Command {
	var filter store.TradeFilter
	var since, until string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Trades == nil {
				return apperrors.ErrStoreUnavailable
			}

			var err error
			if filter.StartDate, err = parseDay(since); err != nil {
				return err
			}
			if filter.EndDate, err = parseDay(until); err != nil {
				return err
			}
			if !filter.EndDate.IsZero() {
				filter.EndDate = filter.EndDate.Add(24*time.Hour - time.Nanosecond)
			}

			trades, err := app.Trades.List(cmd.Context(), filter)
			if err != nil {
				output.Error("Failed to fetch trades: %v", err)
				return err
			}

			if output.IsJSON() {
				if trades == nil {
					trades = []models.Trade{}
				}
				return output.JSON(trades)
			}

			if len(trades) == 0 {
				output.Info("No trades found.")
				output.Dim("Tip: import a broker export with 'journal import <file>'.")
				return nil
			}

			var totalPnL float64
			var wins, losses int

			table := NewTable(output, "ID", "Entry Time", "Market", "Side", "Qty", "Entry", "Exit", "P&L", "R", "Tags")
			for _, t := range trades {
				if t.PnL != nil {
					totalPnL += *t.PnL
					if *t.PnL > 0 {
						wins++
					} else {
						losses++
					}
				}
				table.AddRow(
					t.ID,
					FormatDateTime(t.EntryDateTime),
					t.Market,
					output.FormatDirection(string(t.Direction)),
					strconv.Itoa(t.Contracts),
					FormatPrice(t.EntryPrice),
					FormatOptional(t.ExitPrice, "%.2f"),
					output.FormatPnL(t.PnL),
					FormatR(t.Metrics.AchievedR),
					TruncateString(strings.Join(t.Tags, ","), 20),
				)
			}
			table.Render()

			output.Println()
			output.Bold("Summary")
			output.Printf("  Total Trades: %d\n", len(trades))
			if closed := wins + losses; closed > 0 {
				output.Printf("  Wins/Losses:  %d/%d (%.0f%% win rate)\n", wins, losses, float64(wins)/float64(closed)*100)
				output.Printf("  Total P&L:    %s\n", output.FormatPnL(&totalPnL))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter.AccountID, "account", "a", "", "only trades in this account")
	cmd.Flags().StringVarP(&filter.Market, "market", "m", "", "only trades in this market")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 50, "maximum trades to show (0 for all)")
	cmd.Flags().StringVar(&since, "since", "", "first entry date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "last entry date (YYYY-MM-DD)")
	return cmd
}

func newTradesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a trade with its metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Trades == nil {
				return apperrors.ErrStoreUnavailable
			}

			t, err := app.Trades.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(t)
			}

			output.Bold("%s %s x%d", output.FormatDirection(string(t.Direction)), t.Market, t.Contracts)
			output.Printf("  ID:      %s\n", t.ID)
			if t.AccountID != "" {
				output.Printf("  Account: %s\n", t.AccountID)
			}
			output.Printf("  Status:  %s\n", t.Status)
			output.Printf("  Entry:   %s @ %s\n", FormatPrice(t.EntryPrice), FormatDateTime(t.EntryDateTime))
			if t.ExitPrice != nil {
				exit := "-"
				if t.ExitTime != nil {
					exit = FormatDateTime(*t.ExitTime)
				}
				output.Printf("  Exit:    %s @ %s\n", FormatPrice(*t.ExitPrice), exit)
			}
			if t.ExitTime != nil {
				output.Printf("  Held:    %s\n", FormatDuration(t.ExitTime.Sub(t.EntryDateTime)))
			}
			output.Printf("  P&L:     %s\n", output.FormatPnL(t.PnL))
			output.Println()

			m := t.Metrics
			output.Bold("Risk")
			output.Printf("  Stop / Target:  %s / %s\n", FormatOptional(t.PlannedSL, "%.2f"), FormatOptional(t.PlannedTP, "%.2f"))
			output.Printf("  Risk:           %s\n", formatMoney(m.Risk))
			output.Printf("  Planned R:R:    %s\n", FormatOptional(m.PlannedRR, "1:%.2f"))
			output.Printf("  Achieved:       %s\n", FormatR(m.AchievedR))
			output.Printf("  MAE / MFE:      %s / %s\n", FormatR(m.MAER), FormatR(m.MFER))
			output.Printf("  Heat:           %s\n", FormatOptional(m.HeatPercent, "%.0f%%"))
			output.Printf("  Profit Capture: %s\n", FormatOptional(m.ProfitCapturePercent, "%.1f%%"))

			if t.Setup != "" || t.NotesRaw != "" || len(t.Tags) > 0 {
				output.Println()
				output.Bold("Journal")
				if t.Setup != "" {
					output.Printf("  Setup: %s\n", t.Setup)
				}
				if len(t.Tags) > 0 {
					output.Printf("  Tags:  %s\n", strings.Join(t.Tags, ", "))
				}
				if t.NotesRaw != "" {
					output.Printf("  Notes: %s\n", t.NotesRaw)
				}
			}
			return nil
		},
	}
}

func newTradesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a trade",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Trades == nil {
				return apperrors.ErrStoreUnavailable
			}
			if err := app.Trades.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.Logger.Info().Str("trade_id", args[0]).Msg("Trade deleted")

			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": args[0]})
			}
			output.Success("Deleted trade %s", args[0])
			return nil
		},
	}
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func formatMoney(v *float64) string {
	if v == nil {
		return "-"
	}
	return FormatCurrency(*v)
}
