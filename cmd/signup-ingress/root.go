package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/David-Botos/signup-ingress/pkg/rules"
)

func newRootCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "signup-ingress",
		Short:         "Clean a signup export into golden records and a quarantine list",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading configuration")

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newRulesCommand())
	return cmd
}

// loadEnvFile loads variables that are not already set; a missing file is not an error
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// loadRules returns the compiled rule set from path, or the defaults when path is empty
func loadRules(path string) (*rules.Matcher, rules.RuleSet, error) {
	rs := rules.Default()
	if path != "" {
		loaded, err := rules.LoadFile(path)
		if err != nil {
			return nil, rs, err
		}
		rs = loaded
	}

	matcher, err := rs.Compile()
	if err != nil {
		return nil, rs, err
	}
	return matcher, rs, nil
}

func newRulesCommand() *cobra.Command {
	var rulesFile string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective business rules as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, rs, err := loadRules(rulesFile)
			if err != nil {
				return err
			}
			data, err := rs.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&rulesFile, "rules", "", "YAML rules file overlaid on the built-in defaults")
	return cmd
}
