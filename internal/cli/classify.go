package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvka-141/dbretry/internal/tui"
	"github.com/vvka-141/dbretry/pkg/dbretry"
)

var classifyFlags ruleFlags

var classifyCmd = &cobra.Command{
	Use:   "classify <message>",
	Short: "Show which retry rule matches an error message",
	Long: `Classify evaluates an error message against the effective rule table and
prints the first matching rule and its recovery actions.

Exits with code 12 when no rule matches.`,
	Example: `  dbretry classify "Deadlock found when trying to get lock"
  dbretry classify --driver pgx "ERROR: deadlock detected (SQLSTATE 40P01)"`,
	Args: requireOneArg("message", `"MySQL server has gone away"`),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyFlags.register(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	message := args[0]

	projectCfg, err := loadProjectConfig(classifyFlags.configPath)
	if err != nil {
		return err
	}
	retryCfg, _, err := buildRetryConfig(projectCfg, classifyFlags)
	if err != nil {
		return err
	}

	rule, index, ok := retryCfg.Classify(message)
	if !ok {
		return fmt.Errorf("%q: %w", message, dbretry.ErrNoMatch)
	}

	r := tui.NewRenderer(tui.IsInteractive())
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rule:    %d\n", index)
	fmt.Fprintf(out, "pattern: %s\n", rule.PatternString())
	fmt.Fprintf(out, "actions: %s\n", r.Actions(rule.ActionString(), rule.Retries()))
	if !rule.Retries() {
		fmt.Fprintln(out, r.Muted("note:    no retry action; the error is still returned"))
	}
	return nil
}
