package config

import (
	"github.com/spf13/viper"

	"github.com/Veraticus/the-queue-must-flow/internal/sheets"
)

// LoadSheetsConfig builds the Sheets writer configuration. Values from v
// (config file or QFLOW_ env vars) win over GOOGLE_SHEETS_* variables.
func LoadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	if s := v.GetString("sheets.service_account_path"); s != "" {
		config.ServiceAccountPath = ExpandPath(s)
	}
	config.ClientID = v.GetString("sheets.client_id")
	config.ClientSecret = v.GetString("sheets.client_secret")
	config.RefreshToken = v.GetString("sheets.refresh_token")
	config.SpreadsheetID = v.GetString("sheets.spreadsheet_id")
	if s := v.GetString("sheets.spreadsheet_name"); s != "" {
		config.SpreadsheetName = s
	}
	if s := v.GetString("sheets.timezone"); s != "" {
		config.TimeZone = s
	}
	if s := v.GetString("ledger.currency"); s != "" {
		config.Currency = s
	}

	config.LoadFromEnv()
	config.ServiceAccountPath = ExpandPath(config.ServiceAccountPath)

	// A saved OAuth token stands in for a configured refresh token.
	if config.RefreshToken == "" && config.ServiceAccountPath == "" {
		if tokenFile := SheetsTokenFile(v); tokenFile != "" {
			if token, err := sheets.LoadToken(tokenFile); err == nil {
				config.RefreshToken = token.RefreshToken
			}
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// SheetsTokenFile is where the OAuth consent flow stores its token.
func SheetsTokenFile(v *viper.Viper) string {
	if s := v.GetString("sheets.token_file"); s != "" {
		return ExpandPath(s)
	}
	return ExpandPath("~/.config/qflow/sheets-token.json")
}
