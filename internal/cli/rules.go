package cli

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vvka-141/dbretry/internal/tui"
)

var rulesFlags ruleFlags

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the effective rule table and retry schedule",
	Long: `Rules prints every rule in evaluation order, followed by the retry schedule.
Custom rules from the config file come before the built-in rule set.`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesFlags.register(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	projectCfg, err := loadProjectConfig(rulesFlags.configPath)
	if err != nil {
		return err
	}
	retryCfg, warnings, err := buildRetryConfig(projectCfg, rulesFlags)
	if err != nil {
		return err
	}

	// Align first, then style whole lines so escape codes never skew columns.
	var table bytes.Buffer
	tw := tabwriter.NewWriter(&table, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPATTERN\tACTIONS")
	rules := retryCfg.Rules()
	for i, rule := range rules {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, rule.PatternString(), rule.ActionString())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	r := tui.NewRenderer(tui.IsInteractive())
	out := cmd.OutOrStdout()
	lines := strings.Split(strings.TrimSuffix(table.String(), "\n"), "\n")
	fmt.Fprintln(out, r.Header(lines[0]))
	for i, line := range lines[1:] {
		fmt.Fprintln(out, r.Actions(line, rules[i].Retries()))
	}

	schedule := retryCfg.Schedule()
	fmt.Fprintf(out, "\n%s\n", r.Muted(fmt.Sprintf("schedule: %s (%d retries)", schedule, schedule.MaxAttempts())))

	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	return nil
}
