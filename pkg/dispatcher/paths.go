package dispatcher

import (
	"os"
	"path/filepath"
	"strings"
)

// resolveWorkspace expands ~ and resolves workspace to an absolute path.
func resolveWorkspace(raw string) (string, error) {
	path := expandHome(raw)
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		path = abs
	}
	return filepath.Clean(path), nil
}

// resolveRelative resolves value against workspace, the way
// normalize_path_arguments resolves context_paths/image/file: ~
// expanded, relative paths joined onto workspace, everything cleaned
// to an absolute path.
func resolveRelative(workspace, value string) string {
	path := expandHome(value)
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspace, path)
	}
	return filepath.Clean(path)
}

// resolvePathList applies resolveRelative to every non-blank entry.
func resolvePathList(workspace string, values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, resolveRelative(workspace, v))
	}
	return out
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
