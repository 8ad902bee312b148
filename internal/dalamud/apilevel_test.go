package dalamud

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/require"
)

var testProjectFile = `<Project Sdk="Dalamud.NET.Sdk/12.0.2">
  <PropertyGroup>
    <Version>4.22</Version>
  </PropertyGroup>
</Project>
`

func newTestClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryWaitMin = time.Millisecond
	client.RetryWaitMax = 5 * time.Millisecond
	return client
}

func getProjectServer(t *testing.T, failingRequests int32, requests *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cnt := requests.Add(1)
		if cnt <= failingRequests {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.URL.Path != "/owner/repo/refs/tags/v4.22/Plugin/Plugin.csproj" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, "404: Not Found")
			return
		}
		_, err := io.WriteString(w, testProjectFile)
		require.NoError(t, err)
	}))
}

func TestParseAPILevel(t *testing.T) {
	testCases := []struct {
		project  string
		expected string
	}{
		{project: testProjectFile, expected: "12"},
		{project: `<Project Sdk="Dalamud.NET.Sdk/9">`, expected: `9">`},
		{project: `<Project Sdk="Dalamud.NET.Sdk/11<Project Sdk="Dalamud.NET.Sdk/13.0.0">`, expected: "11"},
	}
	for _, tc := range testCases {
		level, err := ParseAPILevel(tc.project)
		require.NoError(t, err)
		require.Equal(t, tc.expected, level)
	}

	_, err := ParseAPILevel(`<Project Sdk="Microsoft.NET.Sdk">`)
	require.ErrorIs(t, err, ErrSdkMarkerNotFound)
}

func TestFetcherAPILevel(t *testing.T) {
	var requests atomic.Int32
	ts := getProjectServer(t, 0, &requests)
	defer ts.Close()

	f := NewFetcher(newTestClient(), ts.URL, "owner/repo", "Plugin/Plugin.csproj")
	level, err := f.APILevel(context.Background(), "v4.22")
	require.NoError(t, err)
	require.Equal(t, "12", level)
	require.Equal(t, int32(1), requests.Load())
}

func TestFetcherRetry(t *testing.T) {
	var requests atomic.Int32
	ts := getProjectServer(t, 1, &requests)
	defer ts.Close()

	f := NewFetcher(newTestClient(), ts.URL, "owner/repo", "Plugin/Plugin.csproj")
	project, err := f.FetchProject(context.Background(), "v4.22")
	require.NoError(t, err)
	require.Equal(t, testProjectFile, project)
	require.Equal(t, int32(2), requests.Load())
}

func TestFetcherNotFound(t *testing.T) {
	var requests atomic.Int32
	ts := getProjectServer(t, 0, &requests)
	defer ts.Close()

	f := NewFetcher(newTestClient(), ts.URL, "owner/repo", "Plugin/Plugin.csproj")
	_, err := f.APILevel(context.Background(), "v0.0")
	require.ErrorContains(t, err, "unexpected status code: 404")
}
