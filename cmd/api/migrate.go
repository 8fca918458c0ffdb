package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables if they do not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load(false)
			if err != nil {
				return err
			}
			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.db.Close()
			if err := st.migrate(cmd.Context(), st.db); err != nil {
				return err
			}
			logger.Info("db.migrated", "driver", cfg.Database.Driver)
			return nil
		},
	}
}
