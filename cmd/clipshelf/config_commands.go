package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"clipshelf/internal/config"
	"clipshelf/internal/preflight"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and check clipshelf configuration",
	}
	cmd.AddCommand(newConfigInitCommand(ctx), newConfigValidateCommand(ctx))
	return cmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an annotated sample configuration",
		Long: "Init writes the sample configuration to --path, or to the --config " +
			"location, or to ~/.config/clipshelf/config.toml. An existing file is " +
			"kept unless --overwrite is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := sampleTarget(targetPath, ctx.configPath())
			if err != nil {
				return err
			}
			if err := config.CreateSample(target, overwrite); err != nil {
				if errors.Is(err, fs.ErrExist) {
					return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			if os.Getenv(passwordEnv) == "" {
				fmt.Fprintf(out, "Next: set admin.password (or export %s), then run `clipshelf serve`.\n", passwordEnv)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing configuration file")
	return cmd
}

// sampleTarget picks where config init writes: --path, then --config, then
// the default location.
func sampleTarget(pathFlag, configFlag string) (string, error) {
	for _, candidate := range []string{pathFlag, configFlag} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return config.ExpandPath(candidate)
		}
	}
	return config.DefaultConfigPath()
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var checkStores bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			if checkStores {
				colorize := shouldColorize(out)
				results := preflight.RunAll(cmd.Context(), cfg)
				for _, result := range results {
					fmt.Fprintln(out, renderStatusLine(result.Name, passFail(result.Passed), result.Detail, colorize))
				}
				if failed := preflight.Failed(results); len(failed) > 0 {
					return fmt.Errorf("%d preflight checks failed", len(failed))
				}
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkStores, "check-stores", false, "Also open the metadata and object stores")
	return cmd
}
