// Package updater checks GitHub releases for a newer client version.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	GitHubRepo    = "aeolun/afternoon"
	GitHubAPIBase = "https://api.github.com"
)

// Release represents a GitHub release
type Release struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

// Checker looks up the latest release
type Checker struct {
	BaseURL    string // GitHubAPIBase when empty
	Repo       string // GitHubRepo when empty
	HTTPClient *http.Client
}

// Latest fetches the latest published release
func (c Checker) Latest(ctx context.Context) (Release, error) {
	base, repo := c.BaseURL, c.Repo
	if base == "" {
		base = GitHubAPIBase
	}
	if repo == "" {
		repo = GitHubRepo
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}

	url := fmt.Sprintf("%s/repos/%s/releases/latest", strings.TrimRight(base, "/"), repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Release{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := hc.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("failed to fetch release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return Release{}, fmt.Errorf("failed to parse release info: %w", err)
	}
	return release, nil
}

// IsNewer reports whether newVersion is newer than currentVersion.
// Dev builds are always considered outdated.
func IsNewer(currentVersion, newVersion string) bool {
	current := strings.TrimPrefix(currentVersion, "v")
	next := strings.TrimPrefix(newVersion, "v")

	if current == "dev" || current == "" {
		return true
	}

	a, b := parseVersion(current), parseVersion(next)
	for i := range a {
		if a[i] != b[i] {
			return b[i] > a[i]
		}
	}
	return false
}

// parseVersion splits "1.2.3-rc1" into major, minor and patch.
// Missing or malformed parts read as zero.
func parseVersion(v string) [3]int {
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	var out [3]int
	for i, part := range strings.SplitN(v, ".", 3) {
		n, _ := strconv.Atoi(part)
		out[i] = n
	}
	return out
}
