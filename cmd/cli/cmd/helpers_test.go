package cmd_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	clicmd "github.com/angelospk/osdfxp/cmd/cli/cmd"
	"github.com/angelospk/osdfxp/pkg/core/metadata"
	"github.com/angelospk/osdfxp/pkg/core/opensubtitles"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/mock"
)

// MockOSClient is a mock implementation of metadata.OpenSubtitlesClient using testify/mock
type MockOSClient struct {
	mock.Mock
	loggedIn bool
}

// Ensure MockOSClient satisfies the interface defined in metadata
var _ metadata.OpenSubtitlesClient = (*MockOSClient)(nil)

func (m *MockOSClient) Login(ctx context.Context, username, password string) (*opensubtitles.LoginResponse, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	m.loggedIn = true
	return args.Get(0).(*opensubtitles.LoginResponse), args.Error(1)
}

func (m *MockOSClient) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	m.loggedIn = false
	return args.Error(0)
}

func (m *MockOSClient) GetUserInfo(ctx context.Context) (*opensubtitles.UserInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*opensubtitles.UserInfo), args.Error(1)
}

func (m *MockOSClient) IsLoggedIn() bool { return m.loggedIn }

func (m *MockOSClient) SearchSubtitles(ctx context.Context, params opensubtitles.SearchSubtitlesParams) (*opensubtitles.SearchSubtitlesResponse, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*opensubtitles.SearchSubtitlesResponse), args.Error(1)
}

func (m *MockOSClient) RequestDownload(ctx context.Context, req opensubtitles.DownloadRequest) (*opensubtitles.DownloadResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*opensubtitles.DownloadResponse), args.Error(1)
}

func (m *MockOSClient) FetchFile(ctx context.Context, link string) ([]byte, error) {
	args := m.Called(ctx, link)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// --- End Mock Client Methods ---

// testEnv isolates viper settings and on-disk state for one command run.
type testEnv struct {
	dataDir string
	outDir  string
	client  *MockOSClient
	stdin   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		dataDir: t.TempDir(),
		outDir:  t.TempDir(),
		client:  new(MockOSClient),
	}
}

var touchedKeys = []string{
	clicmd.CfgKeyOSAPIKey, clicmd.CfgKeyOSToken, clicmd.CfgKeyOSTokenBaseURL,
	clicmd.CfgKeyOSUsername, clicmd.CfgKeyOSPassword, clicmd.CfgKeyPinnedLanguages,
	clicmd.CfgKeyOutputDir, clicmd.CfgKeyDataDir, clicmd.CfgKeyLogLevel,
}

// resetFlags puts every flag back to its default since cobra keeps flag
// values between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, child := range c.Commands() {
		resetFlags(child)
	}
}

// execute runs the CLI with args. Settings not in overrides get test defaults.
func (e *testEnv) execute(t *testing.T, overrides map[string]interface{}, args ...string) (string, error) {
	t.Helper()

	originalNewClientFunc := clicmd.NewOSClientFunc
	defer func() { clicmd.NewOSClientFunc = originalNewClientFunc }()
	clicmd.NewOSClientFunc = func(apiKey string) (metadata.OpenSubtitlesClient, error) {
		return e.client, nil
	}

	settings := map[string]interface{}{
		clicmd.CfgKeyOSAPIKey:        "test-api-key",
		clicmd.CfgKeyOSToken:         "",
		clicmd.CfgKeyOSTokenBaseURL:  "",
		clicmd.CfgKeyOSUsername:      "",
		clicmd.CfgKeyOSPassword:      "",
		clicmd.CfgKeyPinnedLanguages: "",
		clicmd.CfgKeyOutputDir:       e.outDir,
		clicmd.CfgKeyDataDir:         e.dataDir,
		clicmd.CfgKeyLogLevel:        "error",
	}
	for k, v := range overrides {
		settings[k] = v
	}
	for _, k := range touchedKeys {
		viper.Set(k, settings[k])
	}

	out := new(bytes.Buffer)
	clicmd.RootCmd.SetOut(out)
	clicmd.RootCmd.SetErr(out)
	clicmd.RootCmd.SetIn(strings.NewReader(e.stdin))
	clicmd.RootCmd.SetArgs(args)
	defer func() {
		clicmd.RootCmd.SetArgs([]string{})
		resetFlags(clicmd.RootCmd)
	}()

	_, err := clicmd.RootCmd.ExecuteC()
	return out.String(), err
}
