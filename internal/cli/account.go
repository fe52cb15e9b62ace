package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudgate/cloudgate/internal/config"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Inspect linked accounts",
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every linked account",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, closeDB, err := openSettings()
		if err != nil {
			return err
		}
		defer closeDB()

		tokens, err := settings.ListTokens(cmd.Context())
		if err != nil {
			return err
		}
		if len(tokens) == 0 {
			fmt.Println("no accounts linked")
			return nil
		}
		for _, t := range tokens {
			fmt.Printf("%s  (type=%s)\n", t.AccountID, t.Type)
		}
		return nil
	},
}

var accountRemoveCmd = &cobra.Command{
	Use:   "remove <account-id>",
	Short: "Forget a linked account's persisted token",
	Long: `Removes the persisted token for an account without the server running.
To remove a live account from a running server, use the /remove HTTP
route instead so its in-memory state and mounted routes are torn down
too.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, closeDB, err := openSettings()
		if err != nil {
			return err
		}
		defer closeDB()

		if err := settings.RemoveToken(cmd.Context(), args[0]); err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("removed %s\n", args[0])
		}
		return nil
	},
}

func init() {
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountRemoveCmd)
}

// openSettings opens the persisted Settings store directly, for the
// inspection subcommands that run without a live server process.
func openSettings() (*config.Settings, func(), error) {
	dbPath, err := config.DBPath()
	if err != nil {
		return nil, nil, err
	}
	edb, err := config.Open(dbPath, config.Passphrase())
	if err != nil {
		return nil, nil, err
	}
	settings, err := config.NewSettings(edb)
	if err != nil {
		edb.Close()
		return nil, nil, err
	}
	return settings, func() { edb.Close() }, nil
}
