package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/importer"
)

func addProfileCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile"},
		Short:   "Manage CSV import profiles",
		Long: `Manage CSV import profiles.

Built-in profiles (tradovate, ninjatrader, tradingview) are read-only.
Custom profiles are defined in YAML:

  name: My Broker
  delimiter: ";"
  date_format: DD.MM.YYYY HH:mm
  columns:
    Symbol: market
    Side: direction
    Qty: contracts
    Price: entryPrice
    Time: entryDateTime
    Account: ""`,
	}

	cmd.AddCommand(storeCommand(newProfilesListCmd(app)))
	cmd.AddCommand(storeCommand(newProfilesShowCmd(app)))
	cmd.AddCommand(storeCommand(newProfilesAddCmd(app)))
	cmd.AddCommand(storeCommand(newProfilesRemoveCmd(app)))

	rootCmd.AddCommand(cmd)
}

func newProfilesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and custom profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			profiles, err := importer.NewRegistry(app.Profiles).List(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(profileViews(profiles))
			}

			table := NewTable(output, "Key", "Name", "Delimiter", "Date Format", "Columns")
			for _, p := range profiles {
				table.AddRow(p.Key, p.Name, importer.DelimiterName(p.Delimiter), dateFormatLabel(p.DateFormat), fmt.Sprintf("%d", len(p.ColumnMappings)))
			}
			table.Render()
			return nil
		},
	}
}

func newProfilesShowCmd(app *App) *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Show a profile's column mappings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			p, err := importer.NewRegistry(app.Profiles).Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(newProfileView(p))
			}
			if asYAML {
				data, err := importer.MarshalProfileYAML(p)
				if err != nil {
					return err
				}
				output.Printf("%s", data)
				return nil
			}

			output.Bold("%s (%s)", p.Name, p.Key)
			output.Printf("  Delimiter:   %s\n", importer.DelimiterName(p.Delimiter))
			output.Printf("  Date Format: %s\n", dateFormatLabel(p.DateFormat))
			output.Println()

			headers := make([]string, 0, len(p.ColumnMappings))
			for h := range p.ColumnMappings {
				headers = append(headers, h)
			}
			sort.Strings(headers)

			table := NewTable(output, "Column", "Field")
			for _, h := range headers {
				field := string(p.ColumnMappings[h])
				if field == "" {
					field = output.ColoredString(ColorDim, "(ignored)")
				}
				table.AddRow(h, field)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print as a YAML profile definition")
	return cmd
}

func newProfilesAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file.yaml>",
		Short: "Add a custom profile from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			p, err := importer.LoadProfileYAML(data)
			if err != nil {
				return err
			}
			profiles, err := app.profileStore()
			if err != nil {
				return err
			}
			if err := profiles.SaveProfile(cmd.Context(), p); err != nil {
				return err
			}
			app.Logger.Info().Str("profile", p.Key).Str("name", p.Name).Msg("Custom profile added")

			if output.IsJSON() {
				return output.JSON(newProfileView(p))
			}
			output.Success("Added profile %q", p.Name)
			output.Printf("  Use it with: journal import <file> --profile %s\n", p.Key)
			return nil
		},
	}
}

func newProfilesRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <key>",
		Aliases: []string{"rm"},
		Short:   "Remove a custom profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			key := args[0]

			if _, ok := importer.BuiltInProfile(strings.ToLower(key)); ok {
				return fmt.Errorf("%w: %s", apperrors.ErrBuiltInProfile, key)
			}
			profiles, err := app.profileStore()
			if err != nil {
				return err
			}
			if err := profiles.DeleteProfile(cmd.Context(), key); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"removed": key})
			}
			output.Success("Removed profile %s", key)
			return nil
		},
	}
}

// profileView is the JSON shape of a profile.
type profileView struct {
	Key            string            `json:"key"`
	Name           string            `json:"name"`
	Delimiter      string            `json:"delimiter"`
	DateFormat     string            `json:"dateFormat"`
	BuiltIn        bool              `json:"builtIn"`
	ColumnMappings map[string]string `json:"columnMappings"`
}

func newProfileView(p importer.Profile) profileView {
	v := profileView{
		Key:            p.Key,
		Name:           p.Name,
		Delimiter:      importer.DelimiterName(p.Delimiter),
		DateFormat:     p.DateFormat,
		BuiltIn:        p.BuiltIn,
		ColumnMappings: make(map[string]string, len(p.ColumnMappings)),
	}
	for h, f := range p.ColumnMappings {
		v.ColumnMappings[h] = string(f)
	}
	return v
}

func profileViews(profiles []importer.Profile) []profileView {
	views := make([]profileView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, newProfileView(p))
	}
	return views
}

// dateFormatLabel names the order guess used when a profile has no format.
func dateFormatLabel(format string) string {
	if format == "" {
		return "auto"
	}
	return format
}
