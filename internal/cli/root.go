package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dbretry",
	Short: "Run SQL with automatic retry of transient database failures",
	Long: `dbretry runs a statement against PostgreSQL or MySQL and retries it when the
server reports a transient failure: deadlocks, lock wait timeouts, dropped
connections, or a primary that went read-only during fail-over.

Each failure is matched against an ordered rule table. The first matching rule
decides whether to sleep, reconnect and retry. Failures inside an open
transaction are never retried.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or rules
  11 - Database connection failed
  12 - Message matched no retry rule (classify)
  13 - SQL execution failed after retries`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo(os.Stdout, os.Stderr)
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
