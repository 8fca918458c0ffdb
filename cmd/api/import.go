package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	appingredients "github.com/mombo-site/mombo-api/internal/application/ingredients"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-ingredients <file.xlsx|file.csv>",
		Short: "Bulk load the ingredient dictionary from a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load(false)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.db.Close()

			sum, err := appingredients.NewService(st.ingredients, logger).Import(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d, skipped %d\n", sum.Inserted, sum.Skipped)
			return nil
		},
	}
}
