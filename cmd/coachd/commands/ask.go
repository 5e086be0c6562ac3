package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	service "github.com/okian/coachd/internal/app"
)

func newAskCmd(rt *state) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <coach-id> <message...>",
		Short: "Ask the assistant a question about a coach's clients",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := joinArgs(args[1:])
			if message == "" {
				return errors.New("message must not be empty")
			}
			return rt.withService(cmd.Context(), func(svc *service.Service) error {
				answer, err := svc.Assistant().Run(cmd.Context(), args[0], message)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)
				return err
			})
		},
	}
}
