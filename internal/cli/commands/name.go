package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/sharedorm/internal/cli/ui"
	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
)

func newNameCommand(opts *options) *cobra.Command {
	var referredTable string

	cmd := &cobra.Command{
		Use:   "name [kind table [columns...]]",
		Short: "Generate a constraint or index name",
		Long: `Generate the name the naming convention assigns to a constraint or index.
Kinds are ix, uq, ck, fk and pk (or index, unique, check, foreign_key,
primary_key). For ck the first column argument is the check's identifier.

Without arguments, print the convention's templates.`,
		Example: `  ormctl name uq users email            # uq_users_email
  ormctl name fk orders user_id --referred-table users
  ormctl name ck orders positive_total  # ck_orders_positive_total`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return fmt.Errorf("name needs a kind and a table")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			convention, err := opts.cfg.Convention()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				tbl := ui.NewTable(cmd.OutOrStdout(), []string{"Kind", "Template", "Description"}, &ui.TableOptions{NoColor: opts.noColor})
				for _, category := range convention.Categories() {
					tmpl, _ := convention.Template(category)
					tbl.AddRow(category.String(), tmpl, category.Description())
				}
				tbl.Render()
				return nil
			}

			category, err := naming.ParseCategory(args[0])
			if err != nil {
				return err
			}

			name, err := convention.GenerateConstraintName(category, args[1], args[2:], referredTable)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}

	cmd.Flags().StringVar(&referredTable, "referred-table", "", "referred table of a foreign key")

	return cmd
}
