package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigCmd creates the 'config' subcommand, which prints the resolved
// configuration with secrets masked.
func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(appInstance.GetConfig().Redacted()); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			if err := enc.Close(); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return nil
		},
	}
}
