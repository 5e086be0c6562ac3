package commands

import (
	"github.com/spf13/cobra"

	service "github.com/okian/coachd/internal/app"
)

func newTriageCmd(rt *state) *cobra.Command {
	return &cobra.Command{
		Use:   "triage <update-id>",
		Short: "Classify, link and extract actions for one update synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withService(cmd.Context(), func(svc *service.Service) error {
				res, err := svc.Pipeline().Process(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
}
