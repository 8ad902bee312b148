package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/PunishXIV/pluginmaster-update/internal/config"
	"github.com/PunishXIV/pluginmaster-update/internal/dalamud"
	"github.com/PunishXIV/pluginmaster-update/internal/updater"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	cmd := &cobra.Command{
		Use:     "pluginmaster-update",
		Short:   "Refresh pluginmaster.json from the latest GitHub releases",
		Version: version,
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(log, cmd, args); err != nil {
				log.Errorf("ERROR: %v", err)
				os.Exit(1)
			}
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(log *logrus.Logger, cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewConfigFromEnv()
	if err != nil {
		return err
	}
	cfg.Version = version
	log.SetLevel(cfg.GetLogLevel())
	log.Infof("starting pluginmaster-update (version=%s)", cfg.Version)
	if cfg.GitHubToken == "" {
		log.Debug("GITHUB_TOKEN is not set, using unauthenticated requests")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := config.NewRetryableClient(log)
	u := updater.New(
		log,
		cfg.CreateGitHubClient(httpClient),
		dalamud.NewFetcher(httpClient, cfg.RawBaseURL, cfg.Repo, cfg.ProjectFile),
		updater.Options{
			ManifestPath:    cfg.GetManifestPath(),
			Repo:            cfg.Repo,
			IconURL:         cfg.IconURL,
			ReleasesPerPage: cfg.ReleasesPerPage,
		},
	)
	return u.Run(ctx)
}
