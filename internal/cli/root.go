// Package cli implements cloudgate's command-line surface: running the
// gateway server, and the thin account/settings inspection commands
// that don't need a live HTTP request to answer. Built with cobra,
// following the teacher's own command-tree structure (persistent flags
// on a root command, one RunE per subcommand).
package cli

import (
	"github.com/spf13/cobra"
)

var (
	quiet bool
)

// rootCmd is the base command for cloudgate.
var rootCmd = &cobra.Command{
	Use:   "cloudgate",
	Short: "A local HTTP gateway unifying cloud storage providers behind one WebDAV-compatible surface",
	Long: `cloudgate runs a local HTTP server that presents every linked cloud
storage account (Google Drive, Dropbox, Box, OneDrive, pCloud, Mega,
Yandex Disk, S3, WebDAV, OpenStack/HubiC, local filesystem) behind a
single WebDAV-compatible surface, with on-the-fly thumbnails and DASH
playback.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(settingsCmd)
}
