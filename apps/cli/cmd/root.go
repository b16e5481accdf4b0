package cmd

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quiverhq/quiver/packages/store"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	dbFlag    string
	debugFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "quiver",
	Short: "Send and organize HTTP requests from the terminal.",
	Long: `quiver stores requests, environments and cookie jars in a local
database and sends them one at a time. Responses are captured next to
the request that produced them, so every send leaves a durable record.`,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitUsageError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", getEnvString("QUIVER_DB", "quiver.db"), "Path to the document database (env: QUIVER_DB)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", getEnvBool("QUIVER_DEBUG", false), "Enable debug logging (env: QUIVER_DEBUG)")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

// openStore opens the database named by --db.
func openStore() (*store.Store, error) {
	return store.Open(dbFlag)
}

// newLogger builds the CLI logger. Debug mode writes human-readable
// lines to stderr; otherwise only warnings and above appear.
func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if debugFlag {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

// matchesName reports a case-insensitive name match.
func matchesName(name, query string) bool {
	return strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(query))
}
