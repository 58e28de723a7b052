package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/sharedorm/internal/cli/ui"
	"github.com/conduit-lang/sharedorm/internal/orm/codegen"
)

func newDDLCommand(opts *options) *cobra.Command {
	var (
		drop    bool
		outFile string
	)

	cmd := &cobra.Command{
		Use:   "ddl [tables...]",
		Short: "Render CREATE statements for the schema",
		Long: `Render CREATE TABLE and CREATE INDEX statements for the whole schema in
dependency order, or for the named tables only. Every constraint is
declared with its registered name.`,
		Example: `  ormctl ddl
  ormctl ddl users orders --dialect sqlite
  ormctl ddl --drop --out drop.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, md, err := opts.loadSchema(cmd, opts.cfg.Schema)
			if err != nil {
				return err
			}

			gen := codegen.NewDDLGenerator(opts.dialectOf())

			var statements []string
			switch {
			case len(args) > 0:
				for _, name := range args {
					t, err := opts.tableOrSuggest(cmd, md, name)
					if err != nil {
						return err
					}
					if drop {
						statements = append(statements, gen.GenerateDropTable(t))
						continue
					}
					stmt, err := gen.GenerateSchema(t)
					if err != nil {
						return err
					}
					statements = append(statements, stmt)
				}
			case drop:
				statements, err = gen.GenerateDropAll(md)
			default:
				statements, err = gen.GenerateAll(md)
			}
			if err != nil {
				return err
			}

			script := strings.Join(statements, "\n\n") + "\n"

			if outFile == "" {
				fmt.Fprint(cmd.OutOrStdout(), script)
				return nil
			}

			if err := os.WriteFile(outFile, []byte(script), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outFile, err)
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Wrote %d statements to %s", len(statements), outFile), opts.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVar(&drop, "drop", false, "render DROP statements instead")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write to a file instead of stdout")

	return cmd
}
