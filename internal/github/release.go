package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	kerrors "github.com/selfcustody/krux-installer/internal/errors"
)

const (
	apiBaseURL      = "https://api.github.com"
	releasesPerPage = 100
)

// Asset is a file attached to a GitHub release.
type Asset struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"browser_download_url"`
}

// Release represents a subset of the GitHub Releases API response.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Prerelease  bool      `json:"prerelease"`
	Draft       bool      `json:"draft"`
	PublishedAt time.Time `json:"published_at"`
	Assets      []Asset   `json:"assets"`
}

func validateRepo(owner, repo string) error {
	if strings.Contains(owner, "/") || strings.Contains(repo, "/") {
		return fmt.Errorf("invalid owner %q or repo %q: must not contain '/'", owner, repo)
	}
	if owner == "" || repo == "" {
		return fmt.Errorf("owner and repo must not be empty")
	}
	return nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return kerrors.NewHTTPError(url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ListReleases fetches the published releases of owner/repo, newest first as
// returned by GitHub. Drafts are skipped.
func ListReleases(ctx context.Context, client *http.Client, owner, repo string) ([]Release, error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", apiBaseURL, owner, repo, releasesPerPage)
	var all []Release
	if err := getJSON(ctx, client, url, &all); err != nil {
		return nil, err
	}

	releases := all[:0]
	for _, r := range all {
		if r.Draft || r.TagName == "" {
			continue
		}
		releases = append(releases, r)
	}
	return releases, nil
}

// GetLatestRelease fetches the latest release tag from a GitHub repository.
func GetLatestRelease(ctx context.Context, client *http.Client, owner, repo string) (string, error) {
	if err := validateRepo(owner, repo); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", apiBaseURL, owner, repo)
	var release Release
	if err := getJSON(ctx, client, url, &release); err != nil {
		return "", err
	}

	if release.TagName == "" {
		return "", fmt.Errorf("empty tag_name in latest release for %s/%s", owner, repo)
	}
	return release.TagName, nil
}

// AssetExists issues a HEAD request against url and reports whether the asset
// is published. 404 and 410 mean absent; any other non-2xx status is an error.
func AssetExists(ctx context.Context, client *http.Client, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, kerrors.NewDownloadFailed(url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return false, nil
	default:
		return false, kerrors.NewHTTPError(url, resp.StatusCode)
	}
}
