package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Trade Journal Configuration

[import]
# Profile used when --profile is not given: tradovate, ninjatrader,
# tradingview or custom:<id>
default_profile = "tradovate"
# Account imported trades are assigned to when --account is not given
default_account = ""
# Two trades with the same market and direction whose entry times are
# closer than this are treated as the same trade
match_window = "60m"
# Tag added to trades created by an import
imported_tag = "Imported"
# Zone for CSV dates without an offset ("Local" or an IANA name)
timezone = "Local"

# Dollar value per point per contract, keyed by root symbol.
# Unlisted markets use 20.
[multipliers]
NQ = 20.0
ES = 50.0
MNQ = 2.0
MES = 5.0
CL = 10.0
GC = 10.0

[database]
# SQLite file holding trades and custom import profiles
# path = "~/.config/trade-journal/journal.db"

[logging]
# debug, info, warn, error
level = "info"
console = false
file = true
max_size = 20
max_backups = 5
max_age = 30
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
