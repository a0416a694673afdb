package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/pmteam/internal/config"
	"github.com/felixgeelhaar/pmteam/internal/errors"
)

const redacted = "***"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and write configuration",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigInitCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Prints defaults merged with the config file and environment. API keys are redacted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			cfg, err := cc.LoadConfig()
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.LLM.APIKey != "" {
				shown.LLM.APIKey = redacted
			}
			text, err := yaml.Marshal(&shown)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			return cc.Emit(shown, string(text))
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a default config file",
		Long:  "Writes the default configuration as YAML, or TOML when path ends in .toml.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			path := args[0]
			if !force && fileExists(path) {
				return errors.New(errors.ErrCodeConfigInvalid, "config file already exists: "+path).
					WithSuggestion("Pass --force to overwrite it")
			}
			if err := config.Save(config.DefaultConfig(), path); err != nil {
				return errors.Wrap(errors.ErrCodeConfigInvalid, "write config", err)
			}
			return cc.Emit(map[string]string{"path": path}, "wrote "+path)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
