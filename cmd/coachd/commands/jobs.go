package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	service "github.com/okian/coachd/internal/app"
	"github.com/okian/coachd/internal/domain/types"
)

func newRecomputeCmd(rt *state) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Recompute every client's engagement score once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withService(cmd.Context(), func(svc *service.Service) error {
				res, err := svc.Scorer().RecomputeAll(cmd.Context())
				if err != nil {
					return err
				}
				return printBatch(cmd, res)
			})
		},
	}
}

func newSynthesizeCmd(rt *state) *cobra.Command {
	return &cobra.Command{
		Use:   "synthesize [coach-id]",
		Short: "Write today's briefing for one coach, or for every coach",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withService(cmd.Context(), func(svc *service.Service) error {
				if len(args) == 0 {
					res, err := svc.Synthesizer().SynthesizeAll(cmd.Context())
					if err != nil {
						return err
					}
					return printBatch(cmd, res)
				}
				content, err := svc.Synthesizer().Synthesize(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), content)
				return err
			})
		},
	}
}

func printBatch(cmd *cobra.Command, res types.BatchResult) error {
	return printJSON(cmd, res)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
