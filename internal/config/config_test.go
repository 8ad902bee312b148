package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewConfigFromEnvDefaults(t *testing.T) {
	// Setenv first so the variables are restored after the test.
	for _, name := range []string{"GITHUB_WORKSPACE", "GITHUB_TOKEN", "PLUGINMASTER_FILE"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	cfg, err := NewConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, ".", cfg.Workspace)
	require.Equal(t, "pluginmaster.json", cfg.GetManifestPath())
	require.Empty(t, cfg.GitHubToken)
	require.Equal(t, "PunishXIV/Questionable", cfg.Repo)
	require.Equal(t, "Questionable/Questionable.csproj", cfg.ProjectFile)
	require.Equal(t, "https://s3.aly.pet/qsttest.png", cfg.IconURL)
	require.Equal(t, "https://raw.githubusercontent.com", cfg.RawBaseURL)
	require.Equal(t, 0, cfg.ReleasesPerPage)
	require.Equal(t, logrus.InfoLevel, cfg.GetLogLevel())
}

func TestNewConfigFromEnvWorkspace(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GITHUB_WORKSPACE", dir)
	t.Setenv("PLUGINMASTER_REPO", "owner/repo")
	t.Setenv("PLUGINMASTER_LOG_LEVEL", "debug")
	cfg, err := NewConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "pluginmaster.json"), cfg.GetManifestPath())
	require.Equal(t, "owner/repo", cfg.Repo)
	require.Equal(t, logrus.DebugLevel, cfg.GetLogLevel())
}

func TestValidate(t *testing.T) {
	valid := Config{Repo: "owner/repo", ProjectFile: "a.csproj", LogLevel: "info"}
	require.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		modify func(c *Config)
		errMsg string
	}{
		{name: "missing owner", modify: func(c *Config) { c.Repo = "repo" }, errMsg: "invalid repository"},
		{name: "nested repo", modify: func(c *Config) { c.Repo = "owner/repo/extra" }, errMsg: "invalid repository"},
		{name: "empty project", modify: func(c *Config) { c.ProjectFile = "" }, errMsg: "project file path is empty"},
		{name: "negative page size", modify: func(c *Config) { c.ReleasesPerPage = -1 }, errMsg: "must not be negative"},
		{name: "bad log level", modify: func(c *Config) { c.LogLevel = "loud" }, errMsg: "not a valid logrus Level"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.modify(&c)
			require.ErrorContains(t, c.Validate(), tc.errMsg)
		})
	}
}

func TestCreateGitHubClient(t *testing.T) {
	cfg := &Config{}
	require.NotNil(t, cfg.CreateGitHubClient(NewRetryableClient(nil)))
	cfg.GitHubToken = "token"
	require.NotNil(t, cfg.CreateGitHubClient(NewRetryableClient(logrus.New())))
}
