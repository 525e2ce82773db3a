package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal/internal/config"
	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/journal"
	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

const tradovateCSV = `orderId,Account,B/S,Contract,filledQty,avgPrice,Fill Time,Text
1001,DEMO,Buy,NQZ4,1,18250.25,12/04/2024 09:31:05,breakout
1002,DEMO,Sell,ESZ4,2,6050.50,12/04/2024 10:02:00,
1003,DEMO,Buy,MNQZ4,1,,12/04/2024 11:00:00,
`

func newTestApp(t *testing.T) (*App, *store.MemoryStore) {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	mem := store.NewMemoryStore()
	return &App{Config: cfg, Logger: zerolog.Nop(), Trades: mem, Profiles: mem}, mem
}

func runCLI(t *testing.T, app *App, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmdWithApp(app)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImportCommandJSON(t *testing.T) {
	app, mem := newTestApp(t)

	out, err := runCLI(t, app, tradovateCSV, "import", "-", "--profile", "tradovate", "--account", "demo", "--json")
	require.NoError(t, err)

	var summary journal.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 1, summary.Dropped)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, "demo", summary.Account)

	trades, err := mem.List(context.Background(), store.TradeFilter{AccountID: "demo"})
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestImportCommandTextAndReimport(t *testing.T) {
	app, _ := newTestApp(t)
	path := writeFile(t, "orders.csv", tradovateCSV)

	out, err := runCLI(t, app, "", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 trade(s) to import in 3 row(s)")
	assert.Contains(t, out, "1 row(s) skipped")
	assert.Contains(t, out, "Created 2, updated 0")

	out, err = runCLI(t, app, "", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created 0, updated 2")
}

func TestImportCommandDryRun(t *testing.T) {
	app, mem := newTestApp(t)

	out, err := runCLI(t, app, tradovateCSV, "import", "-", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Import preview (tradovate)")
	assert.Contains(t, out, "NQZ4")
	assert.Contains(t, out, "Would create 2, updated 0")

	trades, err := mem.List(context.Background(), store.TradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestImportCommandStrict(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := runCLI(t, app, tradovateCSV, "import", "-", "--strict")
	assert.ErrorIs(t, err, apperrors.ErrImportRejected)
}

func TestImportCommandMissingFile(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := runCLI(t, app, "", "import", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestHeadersCommand(t *testing.T) {
	app, _ := newTestApp(t)

	out, err := runCLI(t, app, tradovateCSV, "headers", "-", "--json")
	require.NoError(t, err)

	var got struct {
		Headers  []string `json:"headers"`
		Profiles []string `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "orderId", got.Headers[0])
	assert.Equal(t, []string{"tradovate"}, got.Profiles)

	_, err = runCLI(t, app, tradovateCSV, "headers", "-", "--delimiter", "|")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedDelimiter)
}

func TestProfilesCommands(t *testing.T) {
	app, _ := newTestApp(t)
	path := writeFile(t, "eu.yaml", `name: EU Broker
delimiter: ";"
date_format: DD.MM.YYYY HH:mm
columns:
  Symbol: market
  Side: direction
  Qty: contracts
  Price: entryPrice
  Time: entryDateTime
`)

	out, err := runCLI(t, app, "", "profiles", "add", path, "--json")
	require.NoError(t, err)
	var added profileView
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	assert.True(t, strings.HasPrefix(added.Key, "custom:"))
	assert.Equal(t, ";", added.Delimiter)

	out, err = runCLI(t, app, "", "profiles", "list", "--json")
	require.NoError(t, err)
	var listed []profileView
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 4)
	assert.Equal(t, "EU Broker", listed[3].Name)
	assert.False(t, listed[3].BuiltIn)

	out, err = runCLI(t, app, "", "profiles", "show", added.Key, "--yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: EU Broker")

	semicolon := "Symbol;Side;Qty;Price;Time\nES;Sell;1;5000;05.03.2024 14:30\n"
	out, err = runCLI(t, app, semicolon, "import", "-", "--profile", added.Key)
	require.NoError(t, err)
	assert.Contains(t, out, "Created 1")

	_, err = runCLI(t, app, "", "profiles", "remove", "tradovate")
	assert.ErrorIs(t, err, apperrors.ErrBuiltInProfile)

	_, err = runCLI(t, app, "", "profiles", "remove", added.Key)
	require.NoError(t, err)
	_, err = runCLI(t, app, "", "profiles", "show", added.Key)
	assert.ErrorIs(t, err, apperrors.ErrProfileNotFound)
}

func TestTradesCommands(t *testing.T) {
	app, mem := newTestApp(t)
	_, err := runCLI(t, app, tradovateCSV, "import", "-")
	require.NoError(t, err)

	out, err := runCLI(t, app, "", "trades", "list", "--json", "--market", "ESZ4")
	require.NoError(t, err)
	var trades []models.Trade
	require.NoError(t, json.Unmarshal([]byte(out), &trades))
	require.Len(t, trades, 1)
	id := trades[0].ID

	out, err = runCLI(t, app, "", "trades", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Total Trades: 2")

	out, err = runCLI(t, app, "", "trades", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "ESZ4")
	assert.Contains(t, out, "Imported")

	out, err = runCLI(t, app, "", "trades", "list", "--since", "2030-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "No trades found.")

	_, err = runCLI(t, app, "", "trades", "list", "--since", "01/02/2024")
	assert.Error(t, err)

	_, err = runCLI(t, app, "", "trades", "delete", id)
	require.NoError(t, err)
	_, err = mem.Get(context.Background(), id)
	assert.ErrorIs(t, err, apperrors.ErrTradeNotFound)

	_, err = runCLI(t, app, "", "trades", "show", id)
	assert.ErrorIs(t, err, apperrors.ErrTradeNotFound)
}

func TestVersionAndConfigCommands(t *testing.T) {
	app, _ := newTestApp(t)

	out, err := runCLI(t, app, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Trade Journal v"+Version)

	out, err = runCLI(t, app, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Default Profile: tradovate")
	assert.Contains(t, out, "$50.00")

	out, err = runCLI(t, app, "", "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "config.toml")

	out, err = runCLI(t, app, "", "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}

func TestStoreUnavailable(t *testing.T) {
	app, _ := newTestApp(t)
	app.Trades = nil
	app.Profiles = nil
	app.Config.Database.Path = filepath.Join(t.TempDir(), "missing-dir", "sub", "journal.db")

	_, err := runCLI(t, app, tradovateCSV, "import", "-")
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}
