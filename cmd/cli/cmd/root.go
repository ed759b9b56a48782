package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/angelospk/osdfxp/internal/constants"
	"github.com/angelospk/osdfxp/pkg/core/history"
	"github.com/angelospk/osdfxp/pkg/core/metadata"
	"github.com/angelospk/osdfxp/pkg/core/opensubtitles"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Define configuration keys
const (
	CfgKeyOSAPIKey        = "opensubtitles.apikey"
	CfgKeyOSUserAgent     = "opensubtitles.useragent"
	CfgKeyOSBaseURL       = "opensubtitles.baseurl"
	CfgKeyOSUsername      = "opensubtitles.username"
	CfgKeyOSPassword      = "opensubtitles.password"
	CfgKeyOSToken         = "opensubtitles.token"   // Saved by login
	CfgKeyOSTokenBaseURL  = "opensubtitles.tokenurl" // Host the token was issued for
	CfgKeyPinnedLanguages = "subtitles.pinned_languages"
	CfgKeyOutputDir       = "output.dir"
	CfgKeyServeAddr       = "serve.addr"
	CfgKeyDataDir         = "data.dir"
	CfgKeyLogLevel        = "log.level"
)

const (
	appDirName = ".osdfxp"
	envPrefix  = "OSDFXP"

	// annotationNeedsAPIKey marks commands that talk to OpenSubtitles.
	annotationNeedsAPIKey = "osdfxp/needs-api-key"
)

var (
	// Used for flags.
	cfgFile string
	verbose bool

	// logger is shared by all commands and configured before each run.
	logger = log.New()

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "osdfxp",
		Short: "Convert SRT subtitles into DFXP caption documents.",
		Long: `osdfxp converts SubRip subtitles, from disk or downloaded from
OpenSubtitles, into DFXP/TTML caption documents. Inline HTML and ASS styling is
carried over, and the document can be re-timed with a resync offset.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configureLogger(cmd.ErrOrStderr())
			if cmd.Annotations[annotationNeedsAPIKey] == "" {
				return nil
			}
			return checkAndPromptAPIKey(cmd)
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/"+appDirName+"/config.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	viper.SetDefault(CfgKeyOSUserAgent, constants.DefaultUserAgent)
	viper.SetDefault(CfgKeyOutputDir, ".")
	viper.SetDefault(CfgKeyServeAddr, "127.0.0.1:8765")
	viper.SetDefault(CfgKeyLogLevel, "info")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(filepath.Join(home, appDirName))
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(envPrefix) // e.g. OSDFXP_OPENSUBTITLES_APIKEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error reading config file (%s): %v\n", viper.ConfigFileUsed(), err)
		}
	}
}

// configureLogger applies --verbose and log.level to the shared logger.
func configureLogger(out io.Writer) {
	logger.SetOutput(out)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	level, err := log.ParseLevel(viper.GetString(CfgKeyLogLevel))
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
}

// dataDir is where config, saved sessions and history live.
func dataDir() (string, error) {
	if dir := viper.GetString(CfgKeyDataDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get home directory: %w", err)
	}
	return filepath.Join(home, appDirName), nil
}

// configPath is the file settings are written back to.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// saveConfig writes the current settings to the config file.
func saveConfig() (string, error) {
	path, err := configPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("could not create config directory %s: %w", filepath.Dir(path), err)
	}
	if err := viper.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config to %s: %w", path, err)
	}
	return path, nil
}

// checkAndPromptAPIKey asks for the API key when none is configured and saves
// it for later runs.
func checkAndPromptAPIKey(cmd *cobra.Command) error {
	if viper.GetString(CfgKeyOSAPIKey) != "" {
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "OpenSubtitles API Key not found.")
	fmt.Fprint(out, "Please enter your API Key: ")

	inputKey, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	inputKey = strings.TrimSpace(inputKey)
	if inputKey == "" {
		return fmt.Errorf("OpenSubtitles API key not configured. Set key '%s' or env %s_OPENSUBTITLES_APIKEY", CfgKeyOSAPIKey, envPrefix)
	}

	viper.Set(CfgKeyOSAPIKey, inputKey)
	path, err := saveConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "API Key saved successfully to %s\n", path)
	return nil
}

// NewOSClientFunc allows overriding the OpenSubtitles client creation for testing.
// A session saved by the login command is resumed.
var NewOSClientFunc = func(apiKey string) (metadata.OpenSubtitlesClient, error) {
	client := opensubtitles.NewClient(opensubtitles.Config{
		APIKey:    apiKey,
		UserAgent: viper.GetString(CfgKeyOSUserAgent),
		BaseURL:   viper.GetString(CfgKeyOSBaseURL),
	})
	if token := viper.GetString(CfgKeyOSToken); token != "" {
		if err := client.Resume(viper.GetString(CfgKeyOSUsername), token, viper.GetString(CfgKeyOSTokenBaseURL)); err != nil {
			return nil, err
		}
	}
	return client, nil
}

func newOSClient() (metadata.OpenSubtitlesClient, error) {
	apiKey := viper.GetString(CfgKeyOSAPIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("OpenSubtitles API key not configured. Set key '%s' or env %s_OPENSUBTITLES_APIKEY", CfgKeyOSAPIKey, envPrefix)
	}
	client, err := NewOSClientFunc(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenSubtitles client: %w", err)
	}
	return client, nil
}

// openHistory opens the history store, logging rather than failing when it
// cannot be used.
func openHistory() *history.Store {
	dir, err := dataDir()
	if err != nil {
		logger.WithError(err).Warn("History disabled")
		return nil
	}
	store, err := history.NewStore(dir, logger)
	if err != nil {
		logger.WithError(err).Warn("History disabled")
		return nil
	}
	return store
}

func recordHistory(store *history.Store, entry history.Entry) {
	if store == nil {
		return
	}
	if _, err := store.Add(entry); err != nil {
		logger.WithError(err).Warn("Failed to record history")
	}
}

// pinnedLanguages reads the pinned languages, which may be configured as a
// YAML list or a comma separated string.
func pinnedLanguages() []string {
	var out []string
	for _, v := range viper.GetStringSlice(CfgKeyPinnedLanguages) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
