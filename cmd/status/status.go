package status

import (
	"fmt"
	"io"
	"os"

	"github.com/buger/goterm"
	"github.com/spf13/cobra"

	"github.com/sidkik/dirsync/cmd/util"
	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/sync"
)

// Mocked out for unit testing.
var (
	stdout    io.Writer = os.Stdout
	getStatus           = sync.GetStatus
)

// New creates a new `status` command.
func New() *cobra.Command {
	var noColor bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which files have been published and ingested",
		Long: "Compare the configured directories, and show which source files " +
			"are present in the shared directory, and which shared files are " +
			"present in the destination directory.",
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, err := util.LoadConfig(util.ConfigPath(cmd))
			if err != nil {
				util.HandleFatalError(err)
			}

			report := getStatus(cfg)
			printReport(stdout, report, !noColor)
			if len(report.Errors) != 0 {
				util.HandleFatalError(errors.NewFriendlyError(
					"The status is incomplete because some directories couldn't be read."))
			}
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}

func printReport(out io.Writer, report sync.StatusReport, color bool) {
	sections := []struct {
		title string
		files []sync.FileStatus
	}{
		{"Outgoing (sender)", report.Outgoing},
		{"Incoming (receiver)", report.Incoming},
	}

	for i, section := range sections {
		if i != 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, section.title)
		if len(section.files) == 0 {
			fmt.Fprintln(out, "  No files")
			continue
		}

		table := goterm.NewTable(0, 4, 2, ' ', 0)
		for _, file := range section.files {
			fmt.Fprintf(table, "  %s\t%s\n", file.Name, stateString(file, color))
		}
		fmt.Fprint(out, table)
	}

	for _, err := range report.Errors {
		msg := "Error: " + err.Error()
		if color {
			msg = goterm.Color(msg, goterm.RED)
		}
		fmt.Fprintln(out, msg)
	}
}

func stateString(file sync.FileStatus, color bool) string {
	msg := string(file.State)
	if file.Detail != "" {
		msg += ": " + file.Detail
	}
	if !color {
		return msg
	}

	switch file.State {
	case sync.StatePublished, sync.StateIngested:
		return goterm.Color(msg, goterm.GREEN)
	case sync.StatePending:
		return goterm.Color(msg, goterm.YELLOW)
	case sync.StateIneligible:
		return goterm.Color(msg, goterm.RED)
	default:
		return msg
	}
}
