package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/fetchforge/packages/core/definition"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check definition files without sending anything",
	Long: `Load definition files and report unknown keys, references to missing
fragments, duplicate names and requests that contain themselves.

Examples:
  fetchforge validate api.yaml
  fetchforge validate api.yaml admin.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	hasErrors := false
	for _, file := range args {
		def, err := definition.Load(file, nil)
		if err == nil {
			err = def.Validate()
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d requests, %d fragments)\n",
			file, len(def.RequestNames()), len(def.FragmentNames()))
	}

	if hasErrors {
		return withExitCode(ExitParseError, fmt.Errorf("validation failed"))
	}
	return nil
}
