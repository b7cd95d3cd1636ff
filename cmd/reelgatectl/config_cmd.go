package main

import (
	"fmt"
	"os"

	"reelgate/pkg/config"
	"reelgate/pkg/utils"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect server configuration",
	}
	cmd.AddCommand(newConfigValidateCmd(), newConfigShowCmd())
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the config file loads and passes validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("config file %s: %w", path, err)
			}
			if _, err := config.Load(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: configuration OK\n", path)
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			for _, secret := range []*string{
				&cfg.Auth.JWTSecret,
				&cfg.Auth.AdminPasswordHash,
				&cfg.Redis.Password,
				&cfg.Platform.ClientSecret,
				&cfg.Platform.RefreshToken,
			} {
				*secret = utils.MaskSensitive(*secret, 4)
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
