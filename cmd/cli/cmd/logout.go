package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the saved OpenSubtitles session",
	Long: `Invalidates the session token saved by login and removes it from the
config file. Without a saved session this only reports that nothing was done.`,
	Annotations: map[string]string{annotationNeedsAPIKey: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetString(CfgKeyOSToken) == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
			return nil
		}

		client, err := newOSClient()
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Logging out from OpenSubtitles...")
		logoutErr := client.Logout(context.Background())

		// The saved token is useless either way.
		viper.Set(CfgKeyOSToken, "")
		viper.Set(CfgKeyOSTokenBaseURL, "")
		if _, err := saveConfig(); err != nil {
			return err
		}

		if logoutErr != nil {
			return fmt.Errorf("logout failed: %w", logoutErr)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logout successful.")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(logoutCmd)
}
