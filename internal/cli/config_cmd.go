package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wisdomia/uiverify/internal/config"
	"github.com/wisdomia/uiverify/internal/version"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(a.out, "🔍 Validating configuration...")
			warnings, err := config.ValidateConfig(a.cfg)
			for _, w := range warnings {
				fmt.Fprintln(a.out, w)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "✅ Configuration is valid")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := a.v.AllSettings()
			for _, section := range []string{"admin", "signin"} {
				if m, ok := settings[section].(map[string]interface{}); ok && m["password"] != nil {
					m["password"] = "********"
				}
			}
			out, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			_, err = a.out.Write(out)
			return err
		},
	})
	return cmd
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// version needs no configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.out, version.Full())
		},
	}
}
