package dataset

import (
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover lists the files under root matching any of the glob patterns
// (for example "**/*.csv"). Office lock files ("~$...") are skipped.
// Returned paths are slash-separated and relative to root, sorted.
func Discover(root string, patterns ...string) ([]string, error) {
	return DiscoverFS(os.DirFS(root), patterns...)
}

// DiscoverFS is Discover over an fs.FS.
func DiscoverFS(fsys fs.FS, patterns ...string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range patterns {
		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if strings.HasPrefix(path.Base(m), "~$") {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// CountByExtension groups paths by lowercased extension without the dot.
func CountByExtension(paths []string) map[string]int {
	counts := make(map[string]int)
	for _, p := range paths {
		ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
		counts[ext]++
	}
	return counts
}
