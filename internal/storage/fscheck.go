package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNetworkFilesystem is returned when a database path is on a network
// mount, where SQLite's locking and WAL are unreliable.
var ErrNetworkFilesystem = errors.New("sqlite database on network filesystem")

var networkFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

type fsDetector func(path string) (string, error)

// checkLocalFilesystem inspects the nearest existing ancestor of path, since
// the database file and its directory may not exist yet.
func checkLocalFilesystem(path string, detect fsDetector) error {
	inspectPath, err := nearestExistingPath(path)
	if err != nil {
		return fmt.Errorf("resolve database path %q: %w", path, err)
	}

	fsType, err := detect(inspectPath)
	if err != nil {
		return fmt.Errorf("detect filesystem for %q: %w", inspectPath, err)
	}
	if isNetworkFilesystem(fsType) {
		return fmt.Errorf("%w: %q is on %s; point journal.path at a local disk", ErrNetworkFilesystem, path, fsType)
	}
	return nil
}

func nearestExistingPath(path string) (string, error) {
	candidate, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	for {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}

		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", path)
		}
		candidate = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	_, found := networkFilesystems[strings.TrimSpace(strings.ToLower(fsType))]
	return found
}

// CheckLocalFilesystem reports ErrNetworkFilesystem when path would land on a
// network mount.
func CheckLocalFilesystem(path string) error {
	return checkLocalFilesystem(path, detectFilesystemType)
}
