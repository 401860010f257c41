package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/fetchforge/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a sample definition and config",
	Long: `Initialize a fetchforge project in the current directory.

This creates:
  - api.yaml          - Sample definition with fragments and requests
  - .fetchforge.json  - Configuration file

Examples:
  fetchforge init
  fetchforge init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const sampleDefinition = `# Fragments are reusable pieces of a request. Requests list the fragments
# (or other requests) they are made of; later entries refine earlier ones.
# origin: https://api.example.com  (defaults to the origin in .fetchforge.json)

fragments:
  api:
    url: /api/v1
    headers:
      Accept: application/json
      X-Request-Id: "{{uuid()}}"

  auth:
    headers:
      Authorization: "Bearer {{token}}"

  user:
    url: "users/{{id}}"

  listing:
    params:
      page: "{{page}}"
      limit: 20

  create:
    method: post
    body:
      name: "{{name}}"
      email: "{{email}}"

  rename:
    method: patch
    body:
      name: "{{name}}"

requests:
  listUsers: [api, auth, listing]
  getUser: [api, auth, user]
  createUser: [api, auth, create]
  renameUser: [getUser, rename]
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	definitionFile := filepath.Join(cwd, "api.yaml")
	configFile := filepath.Join(cwd, ".fetchforge.json")

	if !forceInit {
		for _, f := range []string{definitionFile, configFile} {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Origin = "http://localhost:3000"
	cfg.Headers = map[string]string{"User-Agent": "fetchforge/" + version}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(definitionFile, []byte(sampleDefinition), 0644); err != nil {
		return fmt.Errorf("failed to create definition file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", definitionFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nfetchforge project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'fetchforge run api.yaml getUser --arg id=1 --arg token=secret --dry-run' to see a resolved request.\n")

	return nil
}
