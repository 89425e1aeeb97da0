package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/vvka-141/dbretry/internal/db"
	"github.com/vvka-141/dbretry/internal/db/sqldb"
	"github.com/vvka-141/dbretry/internal/logging"
	"github.com/vvka-141/dbretry/internal/retry"
	"github.com/vvka-141/dbretry/pkg/dbretry"
)

var execFlags struct {
	rules      ruleFlags
	auth       authFlags
	connection string
	tx         bool
	timeout    time.Duration
}

var execCmd = &cobra.Command{
	Use:   "exec <sql>",
	Short: "Execute a statement, retrying transient failures",
	Long: `Exec runs one SQL statement against the configured database. Failures that
match a retry rule are retried according to the schedule; anything else is
reported immediately.

With --tx the statement runs inside a transaction and the whole transaction is
retried.`,
	Example: `  dbretry exec "UPDATE accounts SET balance = balance - 10 WHERE id = 1" \
    --connection "postgres://app@localhost/bank"

  DATABASE_URL="app:secret@tcp(localhost:3306)/bank" \
    dbretry exec --driver mysql --tx "DELETE FROM sessions WHERE expired"`,
	Args: requireOneArg("sql", `"SELECT 1" --connection postgres://localhost/postgres`),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
	execFlags.rules.register(execCmd)
	execCmd.Flags().StringVarP(&execFlags.connection, "connection", "c", "",
		"Connection string (default: $DBRETRY_CONNECTION, $DATABASE_URL, then the config file)")
	execCmd.Flags().StringVar(&execFlags.auth.method, "auth", "",
		"Cloud authentication for the pgx driver: aws, azure or google")
	execCmd.Flags().StringVar(&execFlags.auth.awsRegion, "aws-region", "", "AWS region for RDS IAM tokens (default: $AWS_REGION)")
	execCmd.Flags().StringVar(&execFlags.auth.azureTenantID, "azure-tenant-id", "", "Entra ID tenant (default: $AZURE_TENANT_ID)")
	execCmd.Flags().StringVar(&execFlags.auth.azureClientID, "azure-client-id", "", "Entra ID client (default: $AZURE_CLIENT_ID)")
	execCmd.Flags().StringVar(&execFlags.auth.googleInstance, "google-instance", "", "Cloud SQL instance connection name (project:region:instance)")
	execCmd.Flags().BoolVar(&execFlags.tx, "tx", false, "Run the statement inside a transaction")
	execCmd.Flags().DurationVar(&execFlags.timeout, "timeout", dbretry.DefaultTimeout,
		"Upper bound for the whole invocation, including retries")
}

func runExec(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	statement := args[0]

	projectCfg, err := loadProjectConfig(execFlags.rules.configPath)
	if err != nil {
		return err
	}
	conn, err := resolveConnection(execFlags.connection, execFlags.rules.driver, execFlags.auth, projectCfg)
	if err != nil {
		return err
	}

	flags := execFlags.rules
	flags.driver = string(conn.Driver)
	retryCfg, warnings, err := buildRetryConfig(projectCfg, flags)
	if err != nil {
		return err
	}

	timeout, err := resolveEffectiveTimeout(cmd, projectCfg, execFlags.timeout)
	if err != nil {
		return err
	}

	logger := logging.NewConsoleLogger(verbose)
	for _, w := range warnings {
		logger.Warn("%s", w)
	}
	logger.Verbose("driver=%s timeout=%s rules=%d schedule=%s", conn.Driver, timeout, len(retryCfg.Rules()), retryCfg.Schedule())

	ctx, cancel := context.WithTimeout(commandContext(cmd), timeout)
	defer cancel()

	var summary string
	if conn.Driver == dbretry.DriverPgx {
		summary, err = execPgx(ctx, conn, statement, retryCfg, logger)
	} else {
		summary, err = execSQL(ctx, conn, statement, retryCfg, logger)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary)
	return nil
}

func execPgx(ctx context.Context, conn *dbretry.ConnectionConfig, statement string, cfg *retry.Config, logger dbretry.Logger) (string, error) {
	connector, err := db.NewConnector(ctx, conn, logger)
	if err != nil {
		return "", err
	}
	session, err := db.Open(ctx, connector)
	if err != nil {
		_ = connector.Close()
		return "", err
	}
	defer session.Close()

	engine := retry.NewEngine(cfg,
		retry.WithResource(session),
		retry.WithDepthSource(session),
		retry.WithLogger(logger),
	)

	tag, err := retry.Run(ctx, engine, func(ctx context.Context) (pgconn.CommandTag, error) {
		if !execFlags.tx {
			return session.Exec(ctx, statement)
		}
		var tag pgconn.CommandTag
		err := session.Transaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			var err error
			tag, err = session.Exec(ctx, statement)
			return err
		})
		return tag, err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", dbretry.ErrExecutionFailed, err)
	}
	return tag.String(), nil
}

func execSQL(ctx context.Context, conn *dbretry.ConnectionConfig, statement string, cfg *retry.Config, logger dbretry.Logger) (string, error) {
	var err error
	connectEngine := retry.NewEngine(
		retry.MustConfig(retry.ConnectRules(), retry.NewExponentialSchedule(dbretry.DefaultConnectMaxAttempts,
			retry.WithInitialDelay(dbretry.DefaultConnectInitialDelay),
			retry.WithMaxDelay(dbretry.DefaultConnectMaxDelay),
		)),
		retry.WithLogger(logger),
	)
	dsn := conn.DSN
	if conn.Driver == dbretry.DriverPostgres {
		if dsn, err = db.NormalizeDSN(dsn); err != nil {
			return "", err
		}
	}
	handle, err := retry.Run(ctx, connectEngine, func(ctx context.Context) (*sqldb.DB, error) {
		return sqldb.Open(ctx, conn.Driver, dsn)
	})
	if err != nil {
		return "", err
	}
	defer handle.Close()

	engine := retry.NewEngine(cfg,
		retry.WithResource(handle),
		retry.WithDepthSource(handle),
		retry.WithLogger(logger),
	)

	affected, err := retry.Run(ctx, engine, func(ctx context.Context) (int64, error) {
		if !execFlags.tx {
			return execRowsAffected(ctx, handle, statement)
		}
		var n int64
		err := handle.Transaction(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
			var err error
			n, err = execRowsAffected(ctx, handle, statement)
			return err
		})
		return n, err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", dbretry.ErrExecutionFailed, err)
	}
	return fmt.Sprintf("%d row(s) affected", affected), nil
}

func execRowsAffected(ctx context.Context, handle *sqldb.DB, statement string) (int64, error) {
	res, err := handle.ExecContext(ctx, statement)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// commandContext returns the command's context, or Background when the
// command is invoked directly (as tests do).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
