package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pmteam/internal/project"
	"github.com/felixgeelhaar/pmteam/internal/ux"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(newProjectListCmd(), newProjectCreateCmd(), newProjectSelectCmd())
	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, cc, func(a *app) error {
				projects, err := a.store.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				if len(projects) == 0 {
					return cc.Emit(projects, ux.Muted("no projects yet, create one with 'pmteam project create <name>'"))
				}
				rows := make([][]string, 0, len(projects))
				for _, p := range projects {
					rows = append(rows, []string{p.Slug, p.Name, strconv.Itoa(p.Runs), p.CreatedAt})
				}
				return cc.Emit(projects, ux.Table([]string{"SLUG", "NAME", "RUNS", "CREATED"}, rows))
			})
		},
	}
}

func newProjectCreateCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, cc, func(a *app) error {
				p, err := a.store.CreateProject(cmd.Context(), args[0], description)
				if err != nil {
					return err
				}
				return cc.Emit(p, fmt.Sprintf("created project %s", p.Slug))
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "project description")
	return cmd
}

func newProjectSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select",
		Short: "Pick or create a project interactively",
		Long: `Prompts for a project when stdin is a terminal. With --non-interactive,
or when no terminal is attached, the default project is used and created
if missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, cc, func(a *app) error {
				p, err := project.NewSelector(a.store, a.cfg.NonInteractive).Select(cmd.Context())
				if err != nil {
					return err
				}
				return cc.Emit(p, p.Slug)
			})
		},
	}
}
