// Command cavatester drives the registration conversation from a terminal,
// either interactively or from a YAML script.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	storeKind string
	dbPath    string
	rulesOnly bool
	verbose   bool
	sessionID string
)

var rootCmd = &cobra.Command{
	Use:   "cavatester",
	Short: "Talk to the CAVA registration engine without the HTTP layer",
	Long: `cavatester runs the registration engine in-process.

  cavatester chat                       # interactive conversation
  cavatester run scripts/register.yaml  # replay a script and check expectations

Configuration is read from the environment (and .env) like the API server.
Use --rules to skip the LLM and --store sqlite to write real records.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "memory", "farmer store: memory or sqlite")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite path (defaults to DB_PATH)")
	rootCmd.PersistentFlags().BoolVar(&rulesOnly, "rules", false, "use rule-based extraction only")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine internals")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session id (random if empty)")

	rootCmd.AddCommand(chatCmd, runCmd)
}
