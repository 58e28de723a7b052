package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/sharedorm/internal/cli/ui"
	"github.com/conduit-lang/sharedorm/internal/orm/inspect"
)

func newCheckCommand(opts *options) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare a live database with the schema",
		Long: `Connect to the configured database and compare its constraint and index
names with the names the schema assigns. Reports missing tables, missing
and unexpected names, and names longer than the dialect keeps.

Exits with an error when drift is found.`,
		Example: `  DATABASE_URL=postgres://localhost/app ormctl check
  ormctl check --dialect sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, md, err := opts.loadSchema(cmd, opts.cfg.Schema)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			db, err := opts.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			report, err := inspect.New(db, opts.dialectOf(), opts.logger.Named("inspect")).CheckDrift(ctx, md)
			if err != nil {
				return err
			}

			return renderDrift(cmd, opts, report)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "inspection timeout")

	return cmd
}

func renderDrift(cmd *cobra.Command, opts *options, report *inspect.DriftReport) error {
	out := cmd.OutOrStdout()

	if len(report.UnknownTables) > 0 {
		fmt.Fprint(out, ui.Warning(fmt.Sprintf("%d tables are not in the schema", len(report.UnknownTables)), report.UnknownTables, opts.noColor))
	}

	if report.Clean() {
		ui.WriteSuccess(out, "Database matches the schema", opts.noColor)
		return nil
	}

	tbl := ui.NewTable(out, []string{"Status", "Table", "Name", "Kind"}, &ui.TableOptions{NoColor: opts.noColor})
	for _, t := range report.MissingTables {
		tbl.AddRow("missing table", t, "", "")
	}
	for _, o := range report.Missing {
		tbl.AddRow("missing", o.Table, o.Name, o.Kind.String())
	}
	for _, o := range report.Unexpected {
		tbl.AddRow("unexpected", o.Table, o.Name, o.Kind.String())
	}
	for _, o := range report.TooLong {
		tbl.AddRow("too long", o.Table, o.Name, o.Kind.String())
	}
	tbl.Render()

	fmt.Fprint(cmd.ErrOrStderr(), ui.FormatError(ui.ErrorOptions{
		Context: "schema drift",
		Problem: report.Summary(),
		HelpCommands: []string{
			"Render a migration: ormctl diff --from <deployed snapshot>",
		},
		NoColor: opts.noColor,
	}))
	return &reportedError{fmt.Errorf("schema drift: %s", report.Summary())}
}
