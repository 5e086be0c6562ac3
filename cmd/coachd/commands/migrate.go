package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/coachd/internal/adapters/repository"
)

func newMigrateCmd(rt *state) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db := rt.cfg.Database
			st, err := repository.Open(cmd.Context(),
				repository.WithDriver(db.Driver),
				repository.WithDSN(db.DSN),
				repository.WithMigrate(true),
			)
			if err != nil {
				return err
			}
			if err := st.Close(); err != nil {
				return fmt.Errorf("close store: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", db.Driver)
			return err
		},
	}
}
