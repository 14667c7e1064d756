package version

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/dirsync/pkg/version"
)

// Mocked out for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of dirsync.",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(stdout, "dirsync version: %s\n", version.Version)
		},
	}
}
