package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pmteam/internal/errors"
	"github.com/felixgeelhaar/pmteam/internal/plan"
	"github.com/felixgeelhaar/pmteam/internal/ux"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs of a project",
	}
	cmd.AddCommand(newRunListCmd(), newRunImportCmd())
	return cmd
}

func newRunListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project>",
		Short: "List runs, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, cc, func(a *app) error {
				runs, err := a.store.ListRuns(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return cc.Emit(runs, ux.Muted("no runs in %s, import one with 'pmteam run import %s'", args[0], args[0]))
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{r.ID, r.Initiative, r.CreatedAt})
				}
				return cc.Emit(runs, ux.Table([]string{"ID", "INITIATIVE", "CREATED"}, rows))
			})
		},
	}
}

type importOptions struct {
	initiative string
	starter    bool
}

func newRunImportCmd() *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   "import <project> [plan.json | -]",
		Short: "Import a plan as a new run",
		Long: `Creates a run from a plan JSON file, or from stdin when the file is "-".
With --starter a six-task starter plan is generated for the initiative
instead. The project is created when it does not exist.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			p, initiative, err := opts.plan(args[1:], time.Now())
			if err != nil {
				return err
			}
			return withApp(cmd, cc, func(a *app) error {
				run, err := a.service.ImportRun(cmd.Context(), args[0], initiative, p)
				if err != nil {
					return err
				}
				return cc.Emit(run, fmt.Sprintf("imported run %s into %s", run.ID, run.Project))
			})
		},
	}
	cmd.Flags().StringVar(&opts.initiative, "initiative", "", "initiative name, defaults to the plan's initiative")
	cmd.Flags().BoolVar(&opts.starter, "starter", false, "generate a starter plan instead of reading a file")
	return cmd
}

// plan resolves the plan to import and the initiative naming the run.
func (o importOptions) plan(paths []string, now time.Time) (*plan.Plan, string, error) {
	switch {
	case o.starter && len(paths) > 0:
		return nil, "", errors.NewBadRequestError("--starter and a plan file are mutually exclusive")
	case o.starter:
		if o.initiative == "" {
			return nil, "", errors.NewBadRequestError("--starter requires --initiative")
		}
		return plan.Starter(o.initiative, now), o.initiative, nil
	case len(paths) == 0:
		return nil, "", errors.NewBadRequestError("a plan file or --starter is required")
	}

	p, err := plan.LoadPlan(paths[0])
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodePlanInvalid, "load plan "+paths[0], err)
	}
	initiative := o.initiative
	if initiative == "" {
		initiative = p.Initiative
	}
	if initiative == "" {
		initiative = "run"
	}
	return p, initiative, nil
}
