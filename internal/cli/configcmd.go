package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/shelf/internal/config"
)

// ConfigInitOptions holds flags for the config init command.
type ConfigInitOptions struct {
	*RootOptions
	FeedURL string
	DataDir string
	Force   bool
}

// NewConfigCommand creates the config command and its subcommands.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show the config file",
	}

	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))

	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConfigInitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		Long: `Write a config file with default values to the --config path.
An existing file is kept unless --force is given.

Example:
  shelf config init --feed-url https://api.github.com/repos/acme/library/releases/latest`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FeedURL, "feed-url", "", "release feed URL")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "data directory")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing config file")

	return cmd
}

func runConfigInit(opts *ConfigInitOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil && !opts.Force {
		return out.Fail(ExitCommandError, ErrCodeConfig,
			fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
	}

	cfg := config.DefaultConfig()
	if opts.FeedURL != "" {
		cfg.FeedURL = opts.FeedURL
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if err := cfg.Validate(); err != nil {
		return out.Fail(ExitCommandError, ErrCodeConfig, "invalid config", err)
	}
	if err := cfg.Save(path); err != nil {
		return out.Fail(ExitCommandError, ErrCodeWrite, "failed to write config", err)
	}
	return out.Success(map[string]string{"path": path}, func(w io.Writer) {
		fmt.Fprintf(w, "Wrote %s\n", path)
	})
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print the effective configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			cfg, err := loadConfig(rootOpts, out)
			if err != nil {
				return err
			}
			if cfg.Token != "" {
				cfg.Token = "<redacted>"
			}
			return out.Success(cfg, func(w io.Writer) {
				data, err := yaml.Marshal(cfg)
				if err != nil {
					fmt.Fprintln(w, err)
					return
				}
				w.Write(data)
			})
		},
	}
}
