package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"firestige.xyz/hmsniff/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and print the effective settings",
	Long: `Load defaults, the config file, HMSNIFF_* environment variables and flags,
validate the result and print it as YAML.

Examples:
  hmsniff validate -c /etc/hmsniff/hmsniff.yml
  HMSNIFF_FILTER_GROUP=239.1.2.3 hmsniff validate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(configFile, cmd.Flags(), cmd.OutOrStdout())
	},
}

func init() {
	addOverrideFlags(validateCmd.Flags())
}

func runValidate(path string, fs *pflag.FlagSet, w io.Writer) error {
	cfg, err := config.Load(path, fs)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]*config.Config{"hmsniff": cfg}); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
