package archive

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoPaths is returned when none of the configured patterns matched anything.
var ErrNoPaths = errors.New("path validation error: path(s) specified in the action for caching do(es) not exist, hence no cache is being saved")

// ResolvePaths expands the glob patterns relative to the workspace into every
// matching file and directory, descendants included. Patterns starting with "!"
// exclude matches and anything below them.
func (c *Codec) ResolvePaths(patterns []string) ([]string, error) {
	var (
		includes []string
		excludes []string
	)
	for _, pattern := range patterns {
		exclude := strings.HasPrefix(pattern, "!")
		pattern, err := c.absPattern(strings.TrimPrefix(pattern, "!"))
		if err != nil {
			return nil, err
		}
		if exclude {
			excludes = append(excludes, pattern)
			continue
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid path pattern %q", pattern)
		}
		includes = append(includes, matches...)
	}

	seen := map[string]struct{}{}
	var ret []string
	for _, root := range includes {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if excluded(p, excludes) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				ret = append(ret, p)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve %s", root)
		}
	}
	if len(ret) == 0 {
		return nil, ErrNoPaths
	}
	sort.Strings(ret)
	return ret, nil
}

func (c *Codec) absPattern(pattern string) (string, error) {
	if pattern == "~" || strings.HasPrefix(pattern, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to expand ~")
		}
		pattern = filepath.Join(home, strings.TrimPrefix(pattern, "~"))
	}
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(c.workspace, pattern)
	}
	return filepath.Clean(pattern), nil
}

func excluded(path string, excludes []string) bool {
	for _, pattern := range excludes {
		for p := path; ; p = filepath.Dir(p) {
			if ok, _ := filepath.Match(pattern, p); ok {
				return true
			}
			if parent := filepath.Dir(p); parent == p {
				break
			}
		}
	}
	return false
}
