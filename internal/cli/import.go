package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/importer"
	"trade-journal/internal/journal"
	"trade-journal/internal/logging"
)

const maxIssuesShown = 20

func addImportCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(storeCommand(newImportCmd(app)))
	rootCmd.AddCommand(storeCommand(newHeadersCmd(app)))
}

func newImportCmd(app *App) *cobra.Command {
	var profileKey, account string
	var dryRun, strict bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import trades from a broker CSV export",
		Long: `Import trades from a broker CSV export.

Rows are mapped with an import profile, enriched with risk metrics and
merged into the account's existing trades. A row whose market and
direction match an existing trade entered within the match window
updates that trade; every other row creates a new trade tagged as
imported. Use "-" to read the file from stdin.`,
		Example: `  journal import trades.csv --profile tradovate
  journal import export.csv --profile ninjatrader --account sim --dry-run
  journal import orders.csv --profile custom:7d1c... --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if profileKey == "" {
				profileKey = app.Config.Import.DefaultProfile
			}
			if account == "" {
				account = app.Config.Import.DefaultAccount
			}

			svc, err := app.Service()
			if err != nil {
				return err
			}

			ctx := logging.WithLogger(cmd.Context(), app.Logger)
			summary, err := svc.Import(ctx, journal.Request{
				Text:       text,
				ProfileKey: profileKey,
				AccountID:  account,
				Source:     args[0],
				DryRun:     dryRun,
				Strict:     strict,
			})

			if output.IsJSON() {
				if jerr := output.JSON(summary); jerr != nil {
					return jerr
				}
				return err
			}

			printImportSummary(output, summary)

			var rerr *apperrors.ReconcileError
			if apperrors.As(err, &rerr) {
				output.Error("Import stopped at trade %d (%s %s): %v", rerr.Index+1, rerr.Op, rerr.Market, rerr.Err)
				output.Warning("%d created and %d updated before the failure were kept", rerr.Created, rerr.Updated)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&profileKey, "profile", "p", "", "import profile key (default from config)")
	cmd.Flags().StringVarP(&account, "account", "a", "", "account to import into (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and reconcile without saving")
	cmd.Flags().BoolVar(&strict, "strict", false, "refuse to import when any row has issues")

	return cmd
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func printImportSummary(output *Output, s journal.Summary) {
	if s.DryRun {
		output.Bold("Import preview (%s)", s.Profile)
	} else {
		output.Bold("Import (%s)", s.Profile)
	}
	if s.Account != "" {
		output.Printf("  Account: %s\n", s.Account)
	}
	output.Printf("  Found %d trade(s) to import in %d row(s)\n", s.Found, s.Report.Rows)
	if s.Dropped > 0 {
		output.Warning("  %d row(s) skipped", s.Dropped)
	}
	if len(s.Report.MissingField) > 0 {
		output.Warning("  Profile maps no column to: %v", s.Report.MissingField)
	}
	output.Println()

	if s.DryRun && s.Found > 0 {
		printCandidates(output, s.Report)
		output.Println()
	}

	printIssues(output, s.Report.Issues)

	verb := "Created"
	if s.DryRun {
		verb = "Would create"
	}
	output.Success("%s %d, updated %d", verb, s.Created, s.Updated)
}

func printCandidates(output *Output, report importer.Report) {
	table := NewTable(output, "Market", "Side", "Qty", "Entry", "Entry Time", "Exit", "P&L", "R")
	for _, t := range report.Trades {
		entry := "-"
		if t.EntryPrice != nil {
			entry = FormatPrice(*t.EntryPrice)
		}
		table.AddRow(
			t.Market,
			output.FormatDirection(string(t.Direction)),
			strconv.Itoa(t.Contracts),
			entry,
			FormatDateTime(t.EntryDateTime),
			FormatOptional(t.ExitPrice, "%.2f"),
			output.FormatPnL(t.PnL),
			FormatR(t.Metrics.AchievedR),
		)
	}
	table.Render()
}

func printIssues(output *Output, issues []importer.RowIssue) {
	if len(issues) == 0 {
		return
	}
	output.Warning("Row issues:")
	for i, issue := range issues {
		if i == maxIssuesShown {
			output.Dim("  ... and %d more", len(issues)-maxIssuesShown)
			break
		}
		switch {
		case issue.Dropped:
			output.Printf("  line %d: skipped, %s %s\n", issue.Line, issue.Message, issue.Field)
		case issue.Column != "":
			output.Printf("  line %d: %s %q: %s\n", issue.Line, issue.Column, issue.Value, issue.Message)
		default:
			output.Printf("  line %d: %s\n", issue.Line, issue.Message)
		}
	}
	output.Println()
}

func newHeadersCmd(app *App) *cobra.Command {
	var delimiter string

	cmd := &cobra.Command{
		Use:   "headers <file>",
		Short: "Show the column headers of a CSV file",
		Long: `Show the column headers of a CSV file and the import profiles that
can parse it. Use the header names when writing a custom profile.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			delim, err := importer.ParseDelimiter(delimiter)
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			headers := importer.DetectHeaders(text, delim)

			matches, err := importer.NewRegistry(app.Profiles).Detect(cmd.Context(), headers)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(matches))
			for _, p := range matches {
				keys = append(keys, p.Key)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"headers":  headers,
					"profiles": keys,
				})
			}

			if len(headers) == 0 {
				output.Warning("No header row found")
				return nil
			}
			table := NewTable(output, "#", "Header")
			for i, h := range headers {
				table.AddRow(strconv.Itoa(i+1), h)
			}
			table.Render()
			output.Println()

			if len(keys) == 0 {
				output.Warning("No profile matches these headers; add one with 'journal profiles add'")
			} else {
				output.Info("Matching profiles: %v", keys)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", ",", "column delimiter: , ; or tab")
	return cmd
}
