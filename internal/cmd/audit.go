package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pmteam/internal/audit"
	"github.com/felixgeelhaar/pmteam/internal/ux"
)

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <project>",
		Short: "Show a project's audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, cc, func(a *app) error {
				if _, err := a.store.GetProject(cmd.Context(), args[0]); err != nil {
					return err
				}
				events, err := a.service.AuditTrail(args[0])
				if err != nil {
					return err
				}
				if len(events) == 0 {
					return cc.Emit(events, ux.Muted("no events recorded for %s", args[0]))
				}
				rows := make([][]string, 0, len(events))
				for _, e := range events {
					rows = append(rows, []string{e.At.Format(time.RFC3339), string(e.Type), e.Run, eventDetails(e)})
				}
				return cc.Emit(events, ux.Table([]string{"TIME", "EVENT", "RUN", "DETAILS"}, rows))
			})
		},
	}
}

func eventDetails(e audit.Event) string {
	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Data[k]))
	}
	return strings.Join(parts, " ")
}
