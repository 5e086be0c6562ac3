package commands

import (
	"github.com/spf13/cobra"

	service "github.com/okian/coachd/internal/app"
	"github.com/okian/coachd/internal/seed"
)

func newSeedCmd(rt *state) *cobra.Command {
	var (
		coaches, clients, days int
		rngSeed                uint64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert generated demo coaches, clients and activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withService(cmd.Context(), func(svc *service.Service) error {
				stats, err := seed.Run(cmd.Context(), svc.Store(),
					seed.WithCoaches(coaches),
					seed.WithClientsPerCoach(clients),
					seed.WithDays(days),
					seed.WithSeed(rngSeed),
				)
				if err != nil {
					return err
				}
				return printJSON(cmd, stats)
			})
		},
	}
	cmd.Flags().IntVar(&coaches, "coaches", 2, "number of coaches")
	cmd.Flags().IntVar(&clients, "clients", 5, "clients per coach")
	cmd.Flags().IntVar(&days, "days", 14, "days of activity to generate")
	cmd.Flags().Uint64Var(&rngSeed, "seed", 42, "random seed")
	return cmd
}
