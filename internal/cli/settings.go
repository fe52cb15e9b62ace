package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect persisted settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted bind host and public-network toggle",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, closeDB, err := openSettings()
		if err != nil {
			return err
		}
		defer closeDB()

		hostSet, err := settings.HostSet(cmd.Context())
		if err != nil {
			return err
		}
		public, err := settings.PublicNetwork(cmd.Context())
		if err != nil {
			return err
		}

		bind := hostSet
		if bind == "" {
			bind = fmt.Sprintf("%s (default)", defaultBind)
			if public {
				bind = "0.0.0.0:8080 (public_network default)"
			}
		}
		fmt.Printf("bind:            %s\n", bind)
		fmt.Printf("public_network:  %v\n", public)
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
}
