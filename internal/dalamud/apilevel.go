package dalamud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

const sdkMarker = `<Project Sdk="Dalamud.NET.Sdk/`

var ErrSdkMarkerNotFound = errors.New("project file does not reference Dalamud.NET.Sdk")

// ParseAPILevel returns the major version of the Dalamud.NET.Sdk referenced by a project file.
func ParseAPILevel(project string) (string, error) {
	_, after, found := strings.Cut(project, sdkMarker)
	if !found {
		return "", ErrSdkMarkerNotFound
	}
	after, _, _ = strings.Cut(after, sdkMarker)
	level, _, _ := strings.Cut(after, ".")
	return level, nil
}

// Fetcher downloads project files from a raw content host at a given tag.
type Fetcher struct {
	client  *retryablehttp.Client
	baseURL string
	repo    string
	path    string
}

func NewFetcher(client *retryablehttp.Client, baseURL, repo, path string) *Fetcher {
	return &Fetcher{
		client:  client,
		baseURL: baseURL,
		repo:    repo,
		path:    path,
	}
}

func (f *Fetcher) projectURL(tag string) (string, error) {
	return url.JoinPath(f.baseURL, f.repo, "refs", "tags", tag, f.path)
}

func (f *Fetcher) FetchProject(ctx context.Context, tag string) (string, error) {
	projectURL, err := f.projectURL(tag)
	if err != nil {
		return "", err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, projectURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d (%s)", resp.StatusCode, projectURL)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// APILevel fetches the project file at tag and parses the Dalamud API level from it.
func (f *Fetcher) APILevel(ctx context.Context, tag string) (string, error) {
	project, err := f.FetchProject(ctx, tag)
	if err != nil {
		return "", fmt.Errorf("failed to fetch project file at %s: %w", tag, err)
	}
	level, err := ParseAPILevel(project)
	if err != nil {
		return "", fmt.Errorf("%s@%s: %w", f.path, tag, err)
	}
	return level, nil
}
