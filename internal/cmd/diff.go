package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pmteam/internal/diff"
	"github.com/felixgeelhaar/pmteam/internal/store"
)

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <project> <from-run> <to-run>",
		Short: "Compare the plans of two runs",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, cc, func(a *app) error {
				d, err := a.service.Diff(cmd.Context(),
					store.RunRef{Project: args[0], Run: args[1]},
					store.RunRef{Project: args[0], Run: args[2]},
				)
				if err != nil {
					return err
				}
				return cc.Emit(d, diff.Render(d))
			})
		},
	}
}
