package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/fetchforge/packages/core/definition"
	"github.com/abdul-hamid-achik/fetchforge/packages/core/env"
)

var listFragmentsFlag bool

var listCmd = &cobra.Command{
	Use:   "list <file>...",
	Short: "List the requests of definition files",
	Long: `List the requests defined in definition files, with the fragments each
is made of and the variables it still needs.

Variables set through FETCHFORGE_VAR_* or a .env file next to the
definition are not listed.

Examples:
  fetchforge list api.yaml
  fetchforge list api.yaml --fragments`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func init() {
	listCmd.Flags().BoolVarP(&listFragmentsFlag, "fragments", "f", false, "Also list fragments")
}

func listCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	var failed bool
	for _, file := range args {
		vars, _ := env.LoadVariables(variablePrefix, true, filepath.Join(filepath.Dir(file), ".env"))
		resolver := env.NewResolver()
		resolver.SetVariables(vars)

		def, err := definition.Load(file, resolver)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error loading %s: %v\n", file, err)
			failed = true
			continue
		}

		bold.Fprintf(out, "\n%s:\n", file)
		if def.Origin != "" {
			dim.Fprintf(out, "  origin: %s\n", def.Origin)
		}
		for _, name := range def.RequestNames() {
			sources, _ := def.Sources(name)
			fmt.Fprintf(out, "  - %s", name)
			dim.Fprintf(out, " [%s]", strings.Join(sources, ", "))
			fmt.Fprintln(out)

			if needed, _ := def.Variables(name); len(needed) > 0 {
				fmt.Fprintf(out, "    args: %s\n", strings.Join(needed, ", "))
			}
		}

		if listFragmentsFlag {
			fmt.Fprintf(out, "  fragments: %s\n", strings.Join(def.FragmentNames(), ", "))
		}
	}

	if failed {
		return withExitCode(ExitParseError, fmt.Errorf("failed to load one or more files"))
	}
	return nil
}
