package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to OpenSubtitles and keep the session for later commands",
	Long: `Logs in with the configured account (opensubtitles.username and
opensubtitles.password, or --username/--password) and saves the session token
to the config file. Later fetch commands reuse it, which raises the daily
download quota from the anonymous one.`,
	Annotations: map[string]string{annotationNeedsAPIKey: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		username, password := loginUsername, loginPassword
		if username == "" {
			username = viper.GetString(CfgKeyOSUsername)
		}
		if password == "" {
			password = viper.GetString(CfgKeyOSPassword)
		}
		if username == "" || password == "" {
			return fmt.Errorf("OpenSubtitles credentials not configured. Use --username/--password or keys '%s' and '%s'", CfgKeyOSUsername, CfgKeyOSPassword)
		}

		// A fresh login replaces any saved session.
		viper.Set(CfgKeyOSToken, "")
		client, err := newOSClient()
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Logging in to OpenSubtitles...")
		ctx := context.Background()
		resp, err := client.Login(ctx, username, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		if resp == nil || resp.Token == "" {
			return errors.New("login failed: no session token returned")
		}

		userInfo, err := client.GetUserInfo(ctx)
		if err != nil {
			return fmt.Errorf("login succeeded but user info failed: %w", err)
		}

		viper.Set(CfgKeyOSUsername, username)
		viper.Set(CfgKeyOSToken, resp.Token)
		viper.Set(CfgKeyOSTokenBaseURL, resp.BaseURL)
		path, err := saveConfig()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (Level: %s). %d downloads remaining today.\n",
			userInfo.Username, userInfo.Level, userInfo.RemainingDownloads)
		logger.Debugf("Session saved to %s", path)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "OpenSubtitles username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "OpenSubtitles password")
}
