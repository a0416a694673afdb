package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pmteam/internal/ux"
)

// NewRootCmd builds the command tree. Every call returns an independent
// tree with fresh flag state.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pmteam",
		Short: "Conversational sprint plan assistant",
		Long: `pmteam keeps a sprint plan per run and lets you talk to it.

Each chat turn can record a blocker, reprioritize tasks or update task
statuses before the assistant answers. Answers come from a multi-agent
team or a single completion when an API key is configured, and from
built-in templates otherwise.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			output, _ := cmd.Flags().GetString("output")
			if !ux.ValidFormat(output) {
				return fmt.Errorf("invalid flag --output %q (supported: text, json, yaml)", output)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file, YAML or TOML by extension")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	flags.StringP("output", "o", ux.FormatText, "output format: text, json or yaml")
	flags.Bool("non-interactive", false, "never prompt, use the default project")

	root.AddCommand(
		newServeCmd(),
		newProjectCmd(),
		newRunCmd(),
		newChatCmd(),
		newConversationCmd(),
		newDiffCmd(),
		newAuditCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command; cancelling ctx stops a running
// server or an in-flight chat turn.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
