package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pmteam/internal/config"
	"github.com/felixgeelhaar/pmteam/internal/log"
	"github.com/felixgeelhaar/pmteam/internal/ux"
)

// CommandContext holds the global flags of one invocation.
type CommandContext struct {
	ConfigFile     string
	LogLevel       string
	LogFormat      string
	Output         string
	NonInteractive bool

	cmd *cobra.Command
}

// NewCommandContext extracts the persistent flags from cmd.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	flags := cmd.Flags()
	cc := &CommandContext{cmd: cmd}

	var err error
	if cc.ConfigFile, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cc.LogLevel, err = flags.GetString("log-level"); err != nil {
		return nil, err
	}
	if cc.LogFormat, err = flags.GetString("log-format"); err != nil {
		return nil, err
	}
	if cc.Output, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cc.NonInteractive, err = flags.GetBool("non-interactive"); err != nil {
		return nil, err
	}
	return cc, nil
}

// LoadConfig reads the config file and environment, then applies flag
// overrides.
func (cc *CommandContext) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(cc.ConfigFile)
	if err != nil {
		return nil, err
	}
	if cc.LogLevel != "" {
		cfg.Log.Level = cc.LogLevel
	}
	if cc.LogFormat != "" {
		cfg.Log.Format = cc.LogFormat
	}
	if cc.NonInteractive {
		cfg.NonInteractive = true
	}
	return cfg, nil
}

// Logger writes to the command's stderr so stdout stays parseable.
func (cc *CommandContext) Logger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.Log.Level)
	lc.Format = log.ParseFormat(cfg.Log.Format)
	lc.Output = cc.cmd.ErrOrStderr()
	return log.New(lc)
}

// Emit prints text in text mode and data in the structured formats.
func (cc *CommandContext) Emit(data any, text string) error {
	f, err := ux.NewFormatter(cc.Output, &ux.FormatterOptions{Writer: cc.cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	if cc.Output == ux.FormatText || cc.Output == "" {
		return f.Format(text)
	}
	return f.Format(data)
}

// Printf writes to the command's stdout.
func (cc *CommandContext) Printf(format string, args ...any) {
	fmt.Fprintf(cc.cmd.OutOrStdout(), format, args...)
}
