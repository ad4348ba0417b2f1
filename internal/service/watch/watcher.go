package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-version"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/logger"
	"github.com/oshokin/node-sentinel/internal/proc"
)

const (
	// defaultBaseURL is the GitHub API root queried for release information.
	defaultBaseURL = "https://api.github.com"

	// releaseRequestTimeout bounds a single release API request.
	releaseRequestTimeout = 30 * time.Second

	// maxReleaseBody caps the size of a release API response we will decode.
	maxReleaseBody = 1 << 20
)

// ErrNoRelease is returned when a repository has no published stable release.
var ErrNoRelease = errors.New("no stable release found")

// errReleaseRepoRequired is returned when a component has no release
// repository configured.
var errReleaseRepoRequired = errors.New("release repository is not configured")

// versionCore matches the numeric part of a version string, such as the
// "1.16.0" inside "Geth/v1.16.0-stable/linux-amd64".
var versionCore = regexp.MustCompile(`\d+(\.\d+)+`)

type (
	// Update describes how a component's installed version relates to the
	// newest published release of its upstream repository.
	Update struct {
		Component       string `json:"component"`
		CurrentVersion  string `json:"current_version"`
		LatestVersion   string `json:"latest_version"`
		ReleaseURL      string `json:"release_url"`
		UpdateAvailable bool   `json:"update_available"`
	}

	// Watcher reports whether newer releases exist for managed components.
	// Implementations are read-only and never modify the node.
	Watcher interface {
		Check(ctx context.Context, component domain.Component) (*Update, error)
		CheckAll(ctx context.Context, components []domain.Component) []Update
	}

	// ReleaseWatcher implements Watcher against the GitHub Releases API.
	ReleaseWatcher struct {
		// client performs release API requests.
		client *http.Client
		// runner executes version probes against installed binaries.
		runner proc.Runner
		// baseURL is the API root, overridable for tests.
		baseURL string
		// probeTimeout bounds each version probe.
		probeTimeout time.Duration
	}

	// Option configures a ReleaseWatcher during construction.
	Option func(*ReleaseWatcher)

	// githubRelease is the JSON wire format of a GitHub release.
	githubRelease struct {
		TagName    string `json:"tag_name"`
		HTMLURL    string `json:"html_url"`
		Draft      bool   `json:"draft"`
		Prerelease bool   `json:"prerelease"`
	}
)

// WithBaseURL overrides the GitHub API base URL, primarily for test servers.
func WithBaseURL(base string) Option {
	return func(w *ReleaseWatcher) {
		w.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient sets a custom HTTP client for release API requests.
func WithHTTPClient(client *http.Client) Option {
	return func(w *ReleaseWatcher) {
		w.client = client
	}
}

// New returns a ReleaseWatcher that probes installed binaries with the given
// runner and queries the GitHub API for published releases.
func New(runner proc.Runner, probeTimeout time.Duration, opts ...Option) *ReleaseWatcher {
	w := &ReleaseWatcher{
		client:       &http.Client{Timeout: releaseRequestTimeout},
		runner:       runner,
		baseURL:      defaultBaseURL,
		probeTimeout: probeTimeout,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Check probes the component's installed binary, fetches the latest stable
// release of its upstream repository, and compares the two versions.
func (w *ReleaseWatcher) Check(ctx context.Context, component domain.Component) (*Update, error) {
	if component.ReleaseRepo == "" {
		return nil, fmt.Errorf("%s: %w", component.Name, errReleaseRepoRequired)
	}

	current, err := proc.ProbeVersion(ctx, w.runner, component.BinaryPath, w.probeTimeout)
	if err != nil {
		return nil, fmt.Errorf("probe %s version: %w", component.Name, err)
	}

	release, err := w.latestRelease(ctx, component.ReleaseRepo)
	if err != nil {
		return nil, err
	}

	currentVersion, err := version.NewVersion(Normalize(current))
	if err != nil {
		return nil, fmt.Errorf("parse installed version %q: %w", current, err)
	}

	latestVersion, err := version.NewVersion(Normalize(release.TagName))
	if err != nil {
		return nil, fmt.Errorf("parse release tag %q: %w", release.TagName, err)
	}

	update := &Update{
		Component:       component.Name,
		CurrentVersion:  currentVersion.String(),
		LatestVersion:   latestVersion.String(),
		ReleaseURL:      release.HTMLURL,
		UpdateAvailable: latestVersion.GreaterThan(currentVersion),
	}

	logger.DebugKV(ctx, "release check finished",
		"component", component.Name,
		"current_version", update.CurrentVersion,
		"latest_version", update.LatestVersion,
		"update_available", update.UpdateAvailable)

	return update, nil
}

// CheckAll checks every component and returns the collected updates.
// Components that cannot be checked are logged and skipped, so one
// unreachable repository does not hide results for the rest.
func (w *ReleaseWatcher) CheckAll(ctx context.Context, components []domain.Component) []Update {
	updates := make([]Update, 0, len(components))

	for _, component := range components {
		update, err := w.Check(ctx, component)
		if err != nil {
			logger.WarnKV(ctx, "release check failed",
				"component", component.Name,
				"error", err)

			continue
		}

		updates = append(updates, *update)
	}

	return updates
}

// latestRelease fetches the newest published release for a repository in
// "owner/name" form.
func (w *ReleaseWatcher) latestRelease(ctx context.Context, repo string) (*githubRelease, error) {
	requestURL := fmt.Sprintf("%s/repos/%s/releases/latest", w.baseURL, repo)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build release request for %s: %w", repo, err)
	}

	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	response, err := w.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("query releases for %s: %w", repo, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNoRelease, repo)
	}

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query releases for %s: unexpected status %d", repo, response.StatusCode)
	}

	var release githubRelease

	decoder := json.NewDecoder(io.LimitReader(response.Body, maxReleaseBody))
	if err = decoder.Decode(&release); err != nil {
		return nil, fmt.Errorf("decode release for %s: %w", repo, err)
	}

	// The latest-release endpoint only serves published stable releases,
	// but a proxy or mirror may relax that.
	if release.Draft || release.Prerelease || release.TagName == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoRelease, repo)
	}

	return &release, nil
}

// Normalize extracts the comparable numeric core of a version string.
// Probe output and release tags dress the same version differently, so
// "Geth/v1.16.0-stable/linux-amd64" and the tag "v1.16.0" both normalize
// to "1.16.0". Strings without a numeric core are returned trimmed, minus
// a leading "v".
func Normalize(raw string) string {
	if match := versionCore.FindString(raw); match != "" {
		return match
	}

	return strings.TrimPrefix(strings.TrimSpace(raw), "v")
}
