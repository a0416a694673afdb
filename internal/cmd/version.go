package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pmteam/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			info := version.GetInfo()
			return cc.Emit(info, info.String())
		},
	}
}
