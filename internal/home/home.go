package home

import (
	"os"
	"path/filepath"
	"strings"
)

var Dir string

func init() {
	Dir, _ = os.UserHomeDir()
}

// Expand resolves a leading "~" against the user's home directory.
func Expand(path string) string {
	if Dir == "" {
		return path
	}
	if path == "~" {
		return Dir
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(Dir, rest)
	}
	return path
}
