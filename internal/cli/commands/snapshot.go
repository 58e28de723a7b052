package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/sharedorm/internal/cli/ui"
	"github.com/conduit-lang/sharedorm/internal/orm/migrate"
)

func newSnapshotCommand(opts *options) *cobra.Command {
	var (
		outFile string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Normalize a schema file into a full snapshot",
		Long: `Read the schema file, register every table, and write the result as a
complete snapshot. Constraints left unnamed in the input get their
convention names; conflicting names are rejected.

Use it to convert between YAML and JSON, or to fill in names after
editing a schema by hand.`,
		Example: `  ormctl snapshot --schema draft.yaml --out schema.yaml
  ormctl snapshot --out schema.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, md, err := opts.loadSchema(cmd, opts.cfg.Schema)
			if err != nil {
				return err
			}

			snap := migrate.Capture(md)

			if outFile != "" {
				if err := snap.Save(outFile); err != nil {
					return err
				}
				ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Wrote %d tables to %s", len(snap.Tables), outFile), opts.noColor)
				return nil
			}

			f := migrate.FormatYAML
			if format != "" {
				if f, err = migrate.ParseFormat(format); err != nil {
					return err
				}
			}
			data, err := snap.Marshal(f)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write to a file (format from extension)")
	cmd.Flags().StringVar(&format, "format", "", "stdout format: yaml or json")

	return cmd
}
