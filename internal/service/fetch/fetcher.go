package fetch

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
	"github.com/oshokin/node-sentinel/internal/logger"
	"github.com/oshokin/node-sentinel/internal/proc"
)

// maxBinaryBytes caps decompression output so a malformed archive cannot
// exhaust the disk (500 MB).
const maxBinaryBytes = 500 << 20

// stagedBinaryMode is the file mode applied to extracted binaries.
const stagedBinaryMode = 0o755

// Fetcher stages candidate binaries for upgrades.
type Fetcher interface {
	Fetch(ctx context.Context, component domain.Component, version, source string) (*StagedBinary, error)
}

// StagedBinary is a downloaded, extracted, and probe-validated candidate
// binary living in an isolated staging directory. It never overlaps the live
// installation; the orchestrator applies it and then discards the staging
// directory.
type StagedBinary struct {
	// Path is the extracted executable.
	Path string
	// Version is the staged binary's self-reported version.
	Version string
	// Checksum is the hex SHA-256 of the staged binary, verified again when
	// the binary is applied over the live path.
	Checksum string
	// dir is the staging directory removed by Discard.
	dir string
}

// Discard removes the staging directory and everything in it.
func (b *StagedBinary) Discard() error {
	if b == nil || b.dir == "" {
		return nil
	}

	if err := os.RemoveAll(b.dir); err != nil {
		return fmt.Errorf("remove staging directory: %w", err)
	}

	return nil
}

// HTTPFetcher downloads release archives over HTTP(S) and extracts the
// component binary out of them.
type HTTPFetcher struct {
	// client performs the downloads, bounded by the download timeout.
	client *http.Client
	// runner executes the version probe against the staged binary.
	runner proc.Runner
	// probeTimeout bounds the staged binary validation probe.
	probeTimeout time.Duration
}

// NewHTTPFetcher creates a fetcher with the given timeouts.
func NewHTTPFetcher(runner proc.Runner, downloadTimeout, probeTimeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: downloadTimeout,
		},
		runner:       runner,
		probeTimeout: probeTimeout,
	}
}

// Fetch downloads the release for the requested version, extracts the
// component binary into a fresh staging directory, marks it executable, and
// confirms it runs by probing its version. The live installation is never
// touched. On any failure the staging directory is removed before returning.
func (f *HTTPFetcher) Fetch(
	ctx context.Context,
	component domain.Component,
	version, source string,
) (staged *StagedBinary, err error) {
	sourceURL := component.SourceURL(version, source)
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: component %s has no download source configured",
			domain.ErrDownloadFailed, component.Name)
	}

	dir, err := os.MkdirTemp("", "node-sentinel-stage-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create staging directory: %s", domain.ErrDownloadFailed, err)
	}

	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	logger.InfoKV(ctx, "Downloading release",
		"component", component.Name,
		"version", version,
		"url", sourceURL)

	downloadPath, err := f.download(ctx, sourceURL, dir)
	if err != nil {
		return nil, err
	}

	binaryPath := filepath.Join(dir, component.EffectiveBinaryName())

	if err = extract(sourceURL, downloadPath, binaryPath, component.EffectiveBinaryName()); err != nil {
		return nil, err
	}

	if err = os.Chmod(binaryPath, stagedBinaryMode); err != nil {
		return nil, fmt.Errorf("%w: mark staged binary executable: %s", domain.ErrStagedBinary, err)
	}

	probedVersion, err := proc.ProbeVersion(ctx, f.runner, binaryPath, f.probeTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStagedBinary, err)
	}

	checksum, err := fileChecksum(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStagedBinary, err)
	}

	logger.InfoKV(ctx, "Staged binary validated",
		"component", component.Name,
		"version", probedVersion,
		"path", binaryPath)

	return &StagedBinary{
		Path:     binaryPath,
		Version:  probedVersion,
		Checksum: checksum,
		dir:      dir,
	}, nil
}

// fileChecksum returns the hex SHA-256 of the file contents.
func fileChecksum(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open staged binary: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err = io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hash staged binary: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// download fetches the source URL into the staging directory and returns the
// downloaded file path.
func (f *HTTPFetcher) download(ctx context.Context, sourceURL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %s", domain.ErrDownloadFailed, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %s for %s",
			domain.ErrDownloadFailed, resp.Status, sourceURL)
	}

	downloadPath := filepath.Join(dir, "download")

	out, err := os.OpenFile(downloadPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("%w: create download file: %s", domain.ErrDownloadFailed, err)
	}
	defer out.Close()

	if _, err = io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("%w: read response body: %s", domain.ErrDownloadFailed, err)
	}

	return downloadPath, nil
}

// extract turns the downloaded file into the staged binary. Gzipped tarballs
// and bare gzip streams are unpacked; anything else is treated as a raw
// binary. The format is chosen by the source URL's file name.
func extract(sourceURL, downloadPath, binaryPath, binaryName string) error {
	name := downloadName(sourceURL)

	switch {
	case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"):
		return extractTarball(downloadPath, binaryPath, binaryName)
	case strings.HasSuffix(name, ".gz"):
		return extractGzip(downloadPath, binaryPath)
	default:
		if err := os.Rename(downloadPath, binaryPath); err != nil {
			return fmt.Errorf("%w: stage raw binary: %s", domain.ErrExtractFailed, err)
		}

		return nil
	}
}

// downloadName returns the file name portion of the source URL.
func downloadName(sourceURL string) string {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return path.Base(sourceURL)
	}

	return path.Base(parsed.Path)
}

// extractTarball scans the gzipped tar stream for the entry whose base name
// matches the expected binary name. Matching by base name handles both flat
// archives and nested layouts like geth-linux-amd64-1.16.0/geth.
func extractTarball(downloadPath, binaryPath, binaryName string) error {
	archive, err := os.Open(filepath.Clean(downloadPath))
	if err != nil {
		return fmt.Errorf("%w: open archive: %s", domain.ErrExtractFailed, err)
	}
	defer archive.Close()

	gz, err := gzip.NewReader(archive)
	if err != nil {
		return fmt.Errorf("%w: read gzip header: %s", domain.ErrExtractFailed, err)
	}
	defer gz.Close()

	reader := tar.NewReader(gz)

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("%w: read tar entry: %s", domain.ErrExtractFailed, err)
		}

		if header.Typeflag != tar.TypeReg || filepath.Base(header.Name) != binaryName {
			continue
		}

		if err = writeStaged(binaryPath, reader); err != nil {
			return err
		}

		return nil
	}

	return fmt.Errorf("%w: binary %q not found in archive", domain.ErrExtractFailed, binaryName)
}

// extractGzip unpacks a bare gzip stream holding the binary itself.
func extractGzip(downloadPath, binaryPath string) error {
	compressed, err := os.Open(filepath.Clean(downloadPath))
	if err != nil {
		return fmt.Errorf("%w: open download: %s", domain.ErrExtractFailed, err)
	}
	defer compressed.Close()

	gz, err := gzip.NewReader(compressed)
	if err != nil {
		return fmt.Errorf("%w: read gzip header: %s", domain.ErrExtractFailed, err)
	}
	defer gz.Close()

	return writeStaged(binaryPath, gz)
}

// writeStaged copies the decompressed binary into place, capped so a
// malformed stream cannot grow without bound.
func writeStaged(binaryPath string, source io.Reader) error {
	out, err := os.OpenFile(filepath.Clean(binaryPath), os.O_WRONLY|os.O_CREATE|os.O_EXCL, stagedBinaryMode)
	if err != nil {
		return fmt.Errorf("%w: create staged binary: %s", domain.ErrExtractFailed, err)
	}
	defer out.Close()

	if _, err = io.Copy(out, io.LimitReader(source, maxBinaryBytes)); err != nil {
		return fmt.Errorf("%w: extract binary: %s", domain.ErrExtractFailed, err)
	}

	return nil
}
