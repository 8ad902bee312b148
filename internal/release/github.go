package release

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/go-github/v59/github"
)

var (
	ErrNoStableRelease = errors.New("no stable release found")
	ErrNoPrerelease    = errors.New("no prerelease found")
	ErrNoAssets        = errors.New("release has no assets")
)

// Selection is the result of a single scan over the releases list.
type Selection struct {
	Latest        *github.RepositoryRelease
	Testing       *github.RepositoryRelease
	DownloadCount int
}

func GetOwnerRepo(fullRepo string) (string, string) {
	owner, repo, found := strings.Cut(fullRepo, "/")
	if !found {
		return "", ""
	}

	return owner, repo
}

// ListReleases fetches a single page of releases. perPage 0 leaves the page size to the API.
func ListReleases(ctx context.Context, ghClient *github.Client, fullRepo string, perPage int) ([]*github.RepositoryRelease, error) {
	owner, repo := GetOwnerRepo(fullRepo)
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid repository %q", fullRepo)
	}
	var opts *github.ListOptions
	if perPage > 0 {
		opts = &github.ListOptions{PerPage: perPage}
	}
	releases, _, err := ghClient.Repositories.ListReleases(ctx, owner, repo, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases of %s: %w", fullRepo, err)
	}
	return releases, nil
}

// Select picks the first prerelease and the first stable release in list order and sums the
// download counts of every asset of every release.
func Select(releases []*github.RepositoryRelease) (*Selection, error) {
	sel := &Selection{}
	for _, r := range releases {
		switch {
		// drafts are only listed for authenticated requests
		case r.GetDraft():
		case sel.Testing == nil && r.GetPrerelease():
			sel.Testing = r
		case sel.Latest == nil && !r.GetPrerelease():
			sel.Latest = r
		}
		for _, a := range r.Assets {
			sel.DownloadCount += a.GetDownloadCount()
		}
	}
	if sel.Latest == nil {
		return nil, ErrNoStableRelease
	}
	if sel.Testing == nil {
		return nil, ErrNoPrerelease
	}
	return sel, nil
}

// FirstAssetURL returns the browser download URL of the first asset.
func FirstAssetURL(r *github.RepositoryRelease) (string, error) {
	if len(r.Assets) == 0 {
		return "", fmt.Errorf("%s: %w", r.GetTagName(), ErrNoAssets)
	}
	return r.Assets[0].GetBrowserDownloadURL(), nil
}

// AssemblyVersion drops the leading tag prefix character, usually "v".
func AssemblyVersion(r *github.RepositoryRelease) string {
	tag := r.GetTagName()
	if tag == "" {
		return ""
	}
	return tag[1:]
}

// IsOlder reports whether release a carries a lower semantic version than release b.
// Tags that are not valid semantic versions are never considered older.
func IsOlder(a, b *github.RepositoryRelease) bool {
	va, err := semver.NewVersion(a.GetTagName())
	if err != nil {
		return false
	}
	vb, err := semver.NewVersion(b.GetTagName())
	if err != nil {
		return false
	}
	return va.LessThan(vb)
}
