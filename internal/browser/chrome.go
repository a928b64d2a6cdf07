package browser

import (
	"os"
	"path/filepath"
	"sort"
)

// ResolveExecPath picks the Chrome binary: the explicit path when it exists,
// then the newest build found in a puppeteer-style cache directory
// (<cache>/chrome/<version>/chrome-linux64/chrome). An empty result lets
// chromedp search the usual system locations.
func ResolveExecPath(explicit, cacheDir string) string {
	if explicit != "" && isExecutable(explicit) {
		return explicit
	}
	if cacheDir == "" {
		return explicit
	}

	chromeDir := filepath.Join(cacheDir, "chrome")
	entries, err := os.ReadDir(chromeDir)
	if err != nil {
		return explicit
	}

	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(versions)))

	for _, version := range versions {
		versionDir := filepath.Join(chromeDir, version)
		candidates := []string{
			filepath.Join(versionDir, "chrome-linux64", "chrome"),
			filepath.Join(versionDir, "chrome-linux", "chrome"),
			filepath.Join(versionDir, "chrome"),
		}
		for _, candidate := range candidates {
			if isExecutable(candidate) {
				return candidate
			}
		}
	}
	return explicit
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}
