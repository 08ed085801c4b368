package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --endpoint
// on both "spool generate" and "spool history").
type Flag struct {
	// Name is the long flag name (e.g. "endpoint").
	Name string

	// Shorthand is the one-letter short flag (e.g. "e"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "client.endpoint").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag and BindRegisteredFlags
// to avoid typos or drift from one command to another.
const (
	FlagEndpoint       = "endpoint"
	FlagAPIKey         = "api-key"
	FlagModel          = "model"
	FlagConnectTimeout = "connect-timeout"
	FlagChunkTimeout   = "chunk-timeout"
	FlagHistoryDriver  = "history-driver"
	FlagSQLite         = "sqlite"
	FlagPostgres       = "postgres"
	FlagServeListen    = "listen"
	FlagScript         = "script"
)

// DefaultFlagSet returns the registry of flags shared across spool commands.
func DefaultFlagSet() FlagSet {
	return FlagSet{
		FlagEndpoint: {
			Name:        "endpoint",
			Shorthand:   "e",
			ViperKey:    "client.endpoint",
			Description: "Generation endpoint base URL",
		},
		FlagAPIKey: {
			Name:        "api-key",
			ViperKey:    "client.api_key",
			Description: "API key sent as a bearer token",
		},
		FlagModel: {
			Name:        "model",
			Shorthand:   "m",
			ViperKey:    "client.model",
			Description: "Model to request",
		},
		FlagConnectTimeout: {
			Name:        "connect-timeout",
			ViperKey:    "client.connect_timeout",
			Description: "Max wait for the first byte of a response",
		},
		FlagChunkTimeout: {
			Name:        "chunk-timeout",
			ViperKey:    "client.chunk_timeout",
			Description: "Max wait between chunks mid-stream",
		},
		FlagHistoryDriver: {
			Name:        "history-driver",
			ViperKey:    "history.driver",
			Description: "History storage driver (inmemory, sqlite, postgres)",
		},
		FlagSQLite: {
			Name:        "sqlite",
			ViperKey:    "history.sqlite_path",
			Description: "Path to the history SQLite database",
		},
		FlagPostgres: {
			Name:        "postgres",
			ViperKey:    "history.postgres_dsn",
			Description: "Postgres DSN for history storage",
		},
		FlagServeListen: {
			Name:        "listen",
			Shorthand:   "l",
			ViperKey:    "serve.listen",
			Description: "Address for the mock server to listen on",
		},
		FlagScript: {
			Name:        "script",
			ViperKey:    "serve.script",
			Description: "TOML script file for the mock server (hot-reloaded)",
		},
	}
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}
