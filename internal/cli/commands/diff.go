package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/sharedorm/internal/cli/ui"
	"github.com/conduit-lang/sharedorm/internal/orm/migrate"
)

type diffOptions struct {
	from          string
	outDir        string
	apply         bool
	allowDataLoss bool
	verbose       bool
}

func newDiffCommand(opts *options) *cobra.Command {
	d := &diffOptions{}

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Render a migration between two schema snapshots",
		Long: `Compare a previous snapshot (--from) with the current schema and render
the migration as up and down SQL. Without --from the whole schema is
rendered as an initial migration.

With --out the plan is written as <version>_<name>.up.sql and
<version>_<name>.down.sql. With --apply the up SQL runs against the
configured database in one transaction.`,
		Example: `  ormctl diff --from db/schema.prev.yaml
  ormctl diff --from prev.yaml --out migrations/
  ormctl diff --from prev.yaml --apply --dialect sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, opts, d)
		},
	}

	cmd.Flags().StringVar(&d.from, "from", "", "previous schema snapshot")
	cmd.Flags().StringVarP(&d.outDir, "out", "o", "", "write migration files to a directory")
	cmd.Flags().BoolVar(&d.apply, "apply", false, "apply the up migration to the configured database")
	cmd.Flags().BoolVar(&d.allowDataLoss, "allow-data-loss", false, "apply even when the plan drops data")
	cmd.Flags().BoolVarP(&d.verbose, "verbose", "v", false, "show detailed database errors")

	return cmd
}

func runDiff(cmd *cobra.Command, opts *options, d *diffOptions) error {
	_, md, err := opts.loadSchema(cmd, opts.cfg.Schema)
	if err != nil {
		return err
	}
	current := migrate.Capture(md)

	var previous *migrate.Snapshot
	if d.from != "" {
		_, prevMD, err := opts.loadSchema(cmd, d.from)
		if err != nil {
			return err
		}
		previous = migrate.Capture(prevMD)
	}

	gen := migrate.NewGenerator(opts.dialectOf(), opts.logger.Named("migrate"))
	plan, err := gen.GeneratePlan(previous, current)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if plan == nil {
		color.New(color.FgCyan).Fprintln(out, "No schema changes")
		return nil
	}

	printChanges(cmd.ErrOrStderr(), plan)

	switch {
	case d.outDir != "":
		up, down, err := writePlan(d.outDir, plan)
		if err != nil {
			return err
		}
		ui.WriteSuccess(out, fmt.Sprintf("Wrote %s", up), opts.noColor)
		ui.WriteSuccess(out, fmt.Sprintf("Wrote %s", down), opts.noColor)
	case !d.apply:
		fmt.Fprint(out, plan.Up)
	}

	if d.apply {
		return applyPlan(cmd, opts, d, plan)
	}
	return nil
}

func printChanges(w io.Writer, plan *migrate.Plan) {
	bold := color.New(color.Bold)
	breaking := color.New(color.FgYellow)
	loss := color.New(color.FgRed, color.Bold)

	bold.Fprintf(w, "Migration %s (%d changes)\n", plan.Name, len(plan.Changes))
	for _, c := range plan.Changes {
		switch {
		case c.DataLoss:
			loss.Fprintf(w, "  - %s (data loss)\n", c)
		case c.Breaking:
			breaking.Fprintf(w, "  ~ %s (breaking)\n", c)
		default:
			fmt.Fprintf(w, "  + %s\n", c)
		}
	}
	fmt.Fprintln(w)
}

// writePlan writes the up and down files, named like 1709294400000_add_table_users.up.sql
func writePlan(dir string, plan *migrate.Plan) (string, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	base := fmt.Sprintf("%d_%s", plan.Version, plan.Name)
	up := filepath.Join(dir, base+".up.sql")
	down := filepath.Join(dir, base+".down.sql")

	if err := os.WriteFile(up, []byte(plan.Up), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", up, err)
	}
	if err := os.WriteFile(down, []byte(plan.Down), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", down, err)
	}
	return up, down, nil
}

func applyPlan(cmd *cobra.Command, opts *options, d *diffOptions, plan *migrate.Plan) error {
	if plan.DataLoss && !d.allowDataLoss {
		return fmt.Errorf("migration %s may lose data; re-run with --allow-data-loss to apply it", plan.Name)
	}
	if err := validateMigrationSQL(plan.Up); err != nil {
		return fmt.Errorf("migration validation failed: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := opts.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := executePlan(ctx, db, plan, opts.logger); err != nil {
		return fmt.Errorf("migration %s failed: %s", plan.Name, categorizeDatabaseError(err, d.verbose))
	}

	ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Applied %s", plan.Name), opts.noColor)
	return nil
}

// executePlan runs the Up script of a plan in a single transaction
func executePlan(ctx context.Context, db *sql.DB, plan *migrate.Plan, logger *zap.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, plan.Up); err != nil {
		logger.Error("migration failed", zap.String("name", plan.Name), zap.Error(err))
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			logger.Error("rollback failed", zap.String("name", plan.Name), zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// validateMigrationSQL rejects statements a schema migration never contains
func validateMigrationSQL(sql string) error {
	dangerous := []string{
		"DROP DATABASE",
		"DROP SCHEMA",
		"TRUNCATE",
		"GRANT",
		"REVOKE",
	}

	upperSQL := strings.ToUpper(sql)
	for _, pattern := range dangerous {
		if strings.Contains(upperSQL, pattern) {
			return fmt.Errorf("migration contains potentially dangerous operation: %s", pattern)
		}
	}
	return nil
}

// categorizeDatabaseError returns a short message for common database
// errors; verbose returns the full error
func categorizeDatabaseError(err error, verbose bool) string {
	if verbose {
		return err.Error()
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "syntax"):
		return "SQL syntax error - use --verbose for details"
	case strings.Contains(errStr, "constraint") || strings.Contains(errStr, "violates"):
		return "constraint violation - use --verbose for details"
	case strings.Contains(errStr, "does not exist") || strings.Contains(errStr, "no such"):
		return "referenced object does not exist - use --verbose for details"
	case strings.Contains(errStr, "already exists"):
		return "object already exists - use --verbose for details"
	case strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "access denied"):
		return "permission denied - check database user privileges"
	default:
		return "migration failed - use --verbose for details"
	}
}
