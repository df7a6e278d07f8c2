package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/shelf/internal/version"
)

// VersionReport is the build information printed by the version command.
type VersionReport struct {
	ClientVersion string `json:"client_version"`
	GitCommit     string `json:"git_commit"`
	BuildTime     string `json:"build_time"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print the client version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			report := VersionReport{
				ClientVersion: version.ClientVersion,
				GitCommit:     version.GitCommit,
				BuildTime:     version.BuildTime,
			}
			return out.Success(report, func(w io.Writer) {
				fmt.Fprintf(w, "shelf %s\n", version.Info())
			})
		},
	}
}
