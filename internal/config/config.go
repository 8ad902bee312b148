package config

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type Config struct {
	Workspace       string `envconfig:"GITHUB_WORKSPACE" default:"."`
	ManifestFile    string `envconfig:"PLUGINMASTER_FILE" default:"pluginmaster.json"`
	Repo            string `envconfig:"PLUGINMASTER_REPO" default:"PunishXIV/Questionable"`
	ProjectFile     string `envconfig:"PLUGINMASTER_PROJECT_FILE" default:"Questionable/Questionable.csproj"`
	IconURL         string `envconfig:"PLUGINMASTER_ICON_URL" default:"https://s3.aly.pet/qsttest.png"`
	RawBaseURL      string `envconfig:"PLUGINMASTER_RAW_BASE_URL" default:"https://raw.githubusercontent.com"`
	ReleasesPerPage int    `envconfig:"PLUGINMASTER_RELEASES_PER_PAGE" default:"0"`
	GitHubToken     string `envconfig:"GITHUB_TOKEN"`
	LogLevel        string `envconfig:"PLUGINMASTER_LOG_LEVEL" default:"info"`
	Version         string `ignored:"true"`
}

func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	owner, repo, found := strings.Cut(c.Repo, "/")
	if !found || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return fmt.Errorf("invalid repository %q: expected owner/name", c.Repo)
	}
	if c.ProjectFile == "" {
		return fmt.Errorf("project file path is empty")
	}
	if c.ReleasesPerPage < 0 {
		return fmt.Errorf("releases per page must not be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// GetManifestPath returns the manifest location inside the workspace.
func (c *Config) GetManifestPath() string {
	return filepath.Join(c.Workspace, c.ManifestFile)
}

func (c *Config) GetLogLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewRetryableClient returns the HTTP client shared by the GitHub API and raw file fetches.
func NewRetryableClient(log *logrus.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.HTTPClient.Timeout = time.Minute
	client.RetryMax = 3
	if log != nil {
		client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			if attempt > 0 {
				log.Warnf("retrying %s %s (attempt %d)", req.Method, req.URL.Redacted(), attempt)
			}
		}
	}
	return client
}

func (c *Config) CreateGitHubClient(httpClient *retryablehttp.Client) *github.Client {
	stdClient := httpClient.StandardClient()
	if c.GitHubToken == "" {
		return github.NewClient(stdClient)
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, stdClient)
	oauthClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.GitHubToken}))
	return github.NewClient(oauthClient)
}
