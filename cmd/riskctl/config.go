package main

import (
	"fmt"

	"github.com/richxcame/order-risk/internal/risk"
	"github.com/richxcame/order-risk/internal/riskconfig"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with risk configuration files",
	}
	cmd.AddCommand(newConfigCheckCmd(), newConfigProfilesCmd())
	return cmd
}

func newConfigCheckCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a risk config file and print the effective configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0], profile)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "apply a named profile on top of the file")
	return cmd
}

func newConfigProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the built-in risk profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range riskconfig.ProfileNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// loadConfig reads path, or starts from the defaults when path is empty,
// then applies profile.
func loadConfig(path, profile string) (risk.Config, error) {
	cfg := risk.DefaultConfig()
	if path != "" {
		loaded, err := riskconfig.NewFileLoader(path).Load()
		if err != nil {
			return risk.Config{}, err
		}
		cfg = loaded
	}

	manager, err := riskconfig.NewManager(cfg)
	if err != nil {
		return risk.Config{}, err
	}
	if profile != "" {
		if _, err := manager.ApplyProfile(profile); err != nil {
			return risk.Config{}, err
		}
	}
	return manager.Current(), nil
}
