package renderer

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// DefaultExecutable is the renderer binary name searched for when none is
// configured.
const DefaultExecutable = "vjdeck-renderer"

var ErrExecutableNotFound = errors.New("renderer executable not found")

// Candidates lists where FindExecutable looks for name, in order: an explicit
// path, next to the running binary, the working tree build outputs, then the
// system bin directories.
func Candidates(name, explicit string) []string {
	var paths []string
	if explicit != "" {
		paths = append(paths, explicit)
	}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), name))
	}
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(wd, "bin", name),
			filepath.Join(wd, "target", "debug", name),
			filepath.Join(wd, "target", "release", name),
		)
	}
	return append(paths,
		filepath.Join("/usr/bin", name),
		filepath.Join("/usr/local/bin", name),
	)
}

// FindExecutable returns the first candidate that is an executable regular
// file, falling back to $PATH.
func FindExecutable(name, explicit string) (string, error) {
	if name == "" {
		name = DefaultExecutable
	}
	for _, path := range Candidates(name, explicit) {
		if isExecutable(path) {
			return path, nil
		}
	}
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, name)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
