package cmd_test

import (
	"path/filepath"
	"testing"

	coreErrors "github.com/angelospk/osdfxp/pkg/core/errors"
	"github.com/angelospk/osdfxp/pkg/core/opensubtitles"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLoginCommand_Success(t *testing.T) {
	env := newTestEnv(t)
	env.client.On("Login", mock.Anything, "user", "secret").
		Return(&opensubtitles.LoginResponse{Token: "jwt-token", BaseURL: "vip-api.opensubtitles.com"}, nil).Once()
	env.client.On("GetUserInfo", mock.Anything).
		Return(&opensubtitles.UserInfo{Username: "user", Level: "Sub leecher", RemainingDownloads: 20}, nil).Once()

	output, err := env.execute(t, nil, "login", "-u", "user", "-p", "secret")
	require.NoError(t, err)
	assert.Contains(t, output, "Logged in as user (Level: Sub leecher). 20 downloads remaining today.")

	saved := viper.New()
	saved.SetConfigFile(filepath.Join(env.dataDir, "config.yaml"))
	require.NoError(t, saved.ReadInConfig())
	assert.Equal(t, "jwt-token", saved.GetString("opensubtitles.token"))
	assert.Equal(t, "vip-api.opensubtitles.com", saved.GetString("opensubtitles.tokenurl"))
	assert.Equal(t, "user", saved.GetString("opensubtitles.username"))
	env.client.AssertExpectations(t)
}

func TestLoginCommand_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.client.On("Login", mock.Anything, "user", "wrong").
		Return(nil, &opensubtitles.ErrorResponse{Status: 401, Message: "Invalid credentials"}).Once()

	_, err := env.execute(t, nil, "login", "-u", "user", "-p", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, coreErrors.ErrUnauthorized)
	assert.NoFileExists(t, filepath.Join(env.dataDir, "config.yaml"))
}

func TestLoginCommand_MissingCredentials(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.execute(t, nil, "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials not configured")
	env.client.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogoutCommand_Success(t *testing.T) {
	env := newTestEnv(t)
	env.client.On("Logout", mock.Anything).Return(nil).Once()

	output, err := env.execute(t, map[string]interface{}{"opensubtitles.token": "jwt-token"}, "logout")
	require.NoError(t, err)
	assert.Contains(t, output, "Logout successful.")
	assert.Empty(t, viper.GetString("opensubtitles.token"))

	saved := viper.New()
	saved.SetConfigFile(filepath.Join(env.dataDir, "config.yaml"))
	require.NoError(t, saved.ReadInConfig())
	assert.Empty(t, saved.GetString("opensubtitles.token"))
	env.client.AssertExpectations(t)
}

func TestLogoutCommand_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.client.On("Logout", mock.Anything).Return(coreErrors.ErrServiceUnavailable).Once()

	output, err := env.execute(t, map[string]interface{}{"opensubtitles.token": "jwt-token"}, "logout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logout failed:")
	assert.NotContains(t, output, "Logout successful.")
	assert.Empty(t, viper.GetString("opensubtitles.token"), "token is dropped even when the API call fails")
}

func TestLogoutCommand_NotLoggedIn(t *testing.T) {
	env := newTestEnv(t)
	output, err := env.execute(t, nil, "logout")
	require.NoError(t, err)
	assert.Contains(t, output, "Not logged in.")
	env.client.AssertNotCalled(t, "Logout", mock.Anything)
}
