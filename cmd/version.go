package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Release stamps, overridden with -ldflags "-X .../cmd.Version=...".
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// VersionInfo is the --json form of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuiltAt   string `json:"built_at"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build and runtime details",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo()
		if mustGetBool(cmd, "json") {
			return outputJSON(info)
		}
		fmt.Printf("face-attendance %s (%s, built %s)\n", info.Version, info.Commit, info.BuiltAt)
		fmt.Printf("  %s on %s\n", info.GoVersion, info.Platform)
		return nil
	},
}

func versionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		Commit:    CommitSHA,
		BuiltAt:   BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "Output as JSON")
}
