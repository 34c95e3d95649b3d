// Package discovery lists the fixture files of a test directory.
//
// Only regular files directly inside the directory are returned. Symlinks count when
// they resolve to a regular file. Subdirectories and other special entries are skipped
// and nothing is traversed recursively.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum-optimism/infra/fixture-runner/types"
)

// ErrDiscovery is matched by every error returned from DiscoverFixtures.
var ErrDiscovery = errors.New("fixture discovery failed")

// Error reports a test directory that is missing, is not a directory, or cannot be read.
type Error struct {
	Dir string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to discover fixtures in %s: %v", e.Dir, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDiscovery) hold for every *Error.
func (e *Error) Is(target error) bool {
	return target == ErrDiscovery
}

// DiscoverFixtures returns one TestCase per regular file in dir, in directory enumeration order.
func DiscoverFixtures(dir string) ([]types.TestCase, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &Error{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &Error{Dir: dir, Err: fmt.Errorf("%s is not a directory", dir)}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &Error{Dir: dir, Err: err}
	}

	fixtures := make([]types.TestCase, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		regular, err := isRegularFile(path, entry)
		if err != nil {
			return nil, &Error{Dir: dir, Err: err}
		}
		if regular {
			fixtures = append(fixtures, types.TestCase{Path: path})
		}
	}

	return fixtures, nil
}

func isRegularFile(path string, entry fs.DirEntry) (bool, error) {
	mode := entry.Type()
	if mode&fs.ModeSymlink == 0 {
		return mode.IsRegular(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
