package upgrade

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const defaultReleaseURL = "https://api.github.com/repos/gerrit-tools/serviceuser-cli/releases/latest"

// release is the subset of the GitHub release payload we care about.
type release struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// Run replaces the running binary with the latest published release when one
// is newer than currentVersion.
func Run(currentVersion string) error {
	binaryPath, err := currentBinary()
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Checking for updates...")
	rel, err := latestRelease(http.DefaultClient, defaultReleaseURL)
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	latest := parseVersion(rel.TagName)
	if !latest.newer(parseVersion(currentVersion)) {
		fmt.Printf("Already up to date (v%s)\n", strings.TrimPrefix(currentVersion, "v"))
		return nil
	}

	url, err := rel.assetURL(assetName(runtime.GOOS, runtime.GOARCH))
	if err != nil {
		return err
	}

	fmt.Printf("Upgrading %s -> %s...\n", strings.TrimPrefix(currentVersion, "v"), latest)
	if err := download(http.DefaultClient, url, binaryPath); err != nil {
		return err
	}

	fmt.Printf("Updated gsu to v%s\n", latest)
	return nil
}

// currentBinary locates the running executable with symlinks resolved, so the
// replacement lands on the real file rather than a link.
func currentBinary() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to determine executable path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable path: %w", err)
	}
	return resolved, nil
}

func latestRelease(client *http.Client, url string) (*release, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release endpoint returned status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("failed to parse release info: %w", err)
	}
	return &rel, nil
}

func (r *release) assetURL(name string) (string, error) {
	for _, a := range r.Assets {
		if a.Name == name {
			return a.BrowserDownloadURL, nil
		}
	}
	return "", fmt.Errorf("release %s has no asset %q for this platform", r.TagName, name)
}

// assetName maps GOOS/GOARCH to the published binary name. Every release
// carries gsu-<os>-<arch> assets, so no platform switch is needed.
func assetName(goos, goarch string) string {
	return fmt.Sprintf("gsu-%s-%s", goos, goarch)
}

// download fetches url into a temp file next to dest and renames it over dest.
// The temp file lives in the same directory so the rename stays atomic.
func download(client *http.Client, url, dest string) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".gsu-upgrade-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	fmt.Fprintln(os.Stderr, "Downloading...")
	resp, err := client.Get(url)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to download update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		tmpFile.Close()
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	n, err := io.Copy(tmpFile, resp.Body)
	if closeErr := tmpFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("downloaded asset is empty")
	}

	if err := os.Chmod(tmpPath, 0755); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to replace binary (try: sudo gsu --upgrade): %w", err)
	}
	return nil
}

// version is a parsed major.minor.patch triple. Pre-release suffixes and a
// leading "v" are ignored; missing or non-numeric segments parse as 0.
type version [3]int

func parseVersion(s string) version {
	s = strings.TrimPrefix(s, "v")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	var v version
	for i, seg := range strings.SplitN(s, ".", 3) {
		n, _ := strconv.Atoi(seg)
		v[i] = n
	}
	return v
}

func (v version) newer(than version) bool {
	for i := 0; i < 3; i++ {
		if v[i] != than[i] {
			return v[i] > than[i]
		}
	}
	return false
}

func (v version) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}
