package router

import (
	"os"
	"path/filepath"
)

// Marker directories that identify which tracker owns a repository.
// Detection is ordered: the first marker found wins.
var markers = []struct {
	dir     string
	backend string
}{
	{".knot", "knot"},
	{".loom", "local"},
}

// MarkerDirs returns the marker directory names the router watches.
func MarkerDirs() []string {
	dirs := make([]string, len(markers))
	for i, m := range markers {
		dirs[i] = m.dir
	}
	return dirs
}

// DetectBackend inspects a repository for tracker marker directories
// and returns the backend name, or "" when no marker is present.
func DetectBackend(repoPath string) string {
	for _, m := range markers {
		info, err := os.Stat(filepath.Join(repoPath, m.dir))
		if err == nil && info.IsDir() {
			return m.backend
		}
	}
	return ""
}
