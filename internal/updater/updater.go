package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/PunishXIV/pluginmaster-update/internal/dalamud"
	"github.com/PunishXIV/pluginmaster-update/internal/manifest"
	"github.com/PunishXIV/pluginmaster-update/internal/release"
	"github.com/google/go-github/v59/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	ManifestPath    string
	Repo            string
	IconURL         string
	ReleasesPerPage int
}

type Updater struct {
	log      *logrus.Logger
	ghClient *github.Client
	fetcher  *dalamud.Fetcher
	opts     Options
	now      func() time.Time
}

// channel is a selected release with the values derived from it.
type channel struct {
	release   *github.RepositoryRelease
	apiLevel  string
	changelog string
}

func New(log *logrus.Logger, ghClient *github.Client, fetcher *dalamud.Fetcher, opts Options) *Updater {
	return &Updater{
		log:      log,
		ghClient: ghClient,
		fetcher:  fetcher,
		opts:     opts,
		now:      time.Now,
	}
}

func (u *Updater) resolveChannel(ctx context.Context, name string, r *github.RepositoryRelease) (*channel, error) {
	u.log.Infof("resolving %s channel from release %s", name, r.GetTagName())
	apiLevel, err := u.fetcher.APILevel(ctx, r.GetTagName())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	changelog, err := release.Changelog(r.GetBody())
	if err != nil {
		return nil, fmt.Errorf("%s: release %s: %w", name, r.GetTagName(), err)
	}
	u.log.Debugf("%s channel: tag=%s apiLevel=%s", name, r.GetTagName(), apiLevel)
	return &channel{release: r, apiLevel: apiLevel, changelog: changelog}, nil
}

func (u *Updater) resolveChannels(ctx context.Context, sel *release.Selection) (*channel, *channel, error) {
	var latest, testing *channel
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		latest, err = u.resolveChannel(gCtx, "latest", sel.Latest)
		return err
	})
	g.Go(func() error {
		var err error
		testing, err = u.resolveChannel(gCtx, "testing", sel.Testing)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return latest, testing, nil
}

func formatChangelog(latest, testing *channel) string {
	return fmt.Sprintf("Latest: %s:\n%s\n\nTesting:%s:\n%s",
		latest.release.GetTagName(),
		latest.changelog,
		testing.release.GetTagName(),
		testing.changelog,
	)
}

func (u *Updater) buildUpdate(latest, testing *channel, downloads int) (*manifest.Update, error) {
	latestURL, err := release.FirstAssetURL(latest.release)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	testingURL, err := release.FirstAssetURL(testing.release)
	if err != nil {
		return nil, fmt.Errorf("testing: %w", err)
	}
	return &manifest.Update{
		DownloadCount:          downloads,
		LastUpdate:             u.now().Unix(),
		Changelog:              formatChangelog(latest, testing),
		AssemblyVersion:        release.AssemblyVersion(latest.release),
		TestingAssemblyVersion: release.AssemblyVersion(testing.release),
		DownloadLinkInstall:    latestURL,
		DownloadLinkUpdate:     latestURL,
		DownloadLinkTesting:    testingURL,
		DalamudAPILevel:        latest.apiLevel,
		TestingDalamudAPILevel: testing.apiLevel,
		IconURL:                u.opts.IconURL,
	}, nil
}

// Run refreshes the manifest from the repository's releases. The manifest file
// is only written when every step succeeded.
func (u *Updater) Run(ctx context.Context) error {
	u.log.Infof("loading manifest %s", u.opts.ManifestPath)
	m, err := manifest.Load(u.opts.ManifestPath)
	if err != nil {
		return err
	}

	u.log.Infof("fetching releases of %s", u.opts.Repo)
	releases, err := release.ListReleases(ctx, u.ghClient, u.opts.Repo, u.opts.ReleasesPerPage)
	if err != nil {
		return err
	}
	sel, err := release.Select(releases)
	if err != nil {
		return fmt.Errorf("%s: %w", u.opts.Repo, err)
	}
	u.log.Infof("found %d releases (latest=%s, testing=%s, downloads=%d)",
		len(releases), sel.Latest.GetTagName(), sel.Testing.GetTagName(), sel.DownloadCount)
	if release.IsOlder(sel.Testing, sel.Latest) {
		u.log.Warnf("testing release %s is older than latest release %s", sel.Testing.GetTagName(), sel.Latest.GetTagName())
	}

	latest, testing, err := u.resolveChannels(ctx, sel)
	if err != nil {
		return err
	}
	update, err := u.buildUpdate(latest, testing, sel.DownloadCount)
	if err != nil {
		return err
	}

	for _, key := range []string{"AssemblyVersion", "TestingAssemblyVersion"} {
		if prev, ok := m.Field(key); ok {
			u.log.Debugf("%s was %s", key, prev)
		}
	}
	if err := m.Apply(update); err != nil {
		return err
	}
	if err := m.Save(); err != nil {
		return err
	}
	u.log.Infof("updated %s (version=%s, testing=%s)", m.Path(), update.AssemblyVersion, update.TestingAssemblyVersion)
	return nil
}
