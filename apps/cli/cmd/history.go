package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/fetchforge/packages/core/config"
	"github.com/abdul-hamid-achik/fetchforge/packages/history"
)

var (
	historyLimitFlag  int
	historyClearFlag  bool
	historyFileFlag   string
	historyConfigFlag string
	historyNoColor    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear the log of sent requests",
	Long: `Show the requests recorded by 'fetchforge run --history', newest first.

Examples:
  fetchforge history
  fetchforge history -n 50
  fetchforge history --clear`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Number of entries to show, 0 for all")
	historyCmd.Flags().BoolVar(&historyClearFlag, "clear", false, "Delete every entry")
	historyCmd.Flags().StringVar(&historyFileFlag, "history-file", getEnvString("FETCHFORGE_HISTORY_FILE", ""), "History database path (env: FETCHFORGE_HISTORY_FILE)")
	historyCmd.Flags().StringVar(&historyConfigFlag, "config", getEnvString("FETCHFORGE_CONFIG", ""), "Path to config file (env: FETCHFORGE_CONFIG)")
	historyCmd.Flags().BoolVar(&historyNoColor, "no-color", getEnvBool("FETCHFORGE_NO_COLOR", false), "Disable colored output (env: FETCHFORGE_NO_COLOR)")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	path, err := historyPath()
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	store, err := history.Open(cmd.Context(), path)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()

	if historyClearFlag {
		n, err := store.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d entries\n", n)
		return nil
	}

	entries, err := store.List(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No requests recorded")
		return nil
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	dim := color.New(color.Faint)
	if historyNoColor {
		for _, c := range []*color.Color{green, red, dim} {
			c.DisableColor()
		}
	}

	for _, e := range entries {
		dim.Fprintf(out, "%s ", e.SentAt.Format(time.DateTime))
		status := strconv.Itoa(e.Status)
		switch {
		case e.Error != "":
			red.Fprint(out, "ERR")
		case e.Status >= 200 && e.Status < 400:
			green.Fprint(out, status)
		default:
			red.Fprint(out, status)
		}
		fmt.Fprintf(out, " %-20s %s %s", e.Name, e.Method, e.URL)
		if e.Duration > 0 {
			dim.Fprintf(out, " (%dms)", e.Duration.Milliseconds())
		}
		fmt.Fprintln(out)
		if e.Error != "" {
			red.Fprintf(out, "    %s\n", e.Error)
		}
	}
	return nil
}

// historyPath resolves the database location from the flag, then the
// config file, then the default cache location.
func historyPath() (string, error) {
	if historyFileFlag != "" {
		return historyFileFlag, nil
	}
	cfg, err := config.LoadConfig(historyConfigFlag)
	if err != nil {
		return "", err
	}
	if cfg.History != "" {
		return cfg.History, nil
	}
	return history.DefaultPath()
}
