// Package nodesfile reads the cluster membership file.
//
// The file is UTF-8 text holding comma-separated peer descriptors.
// This layer returns the contents verbatim; descriptor syntax is the
// replication layer's concern. The loader is stateless and re-invoked
// on every refresh cycle.
package nodesfile

import (
	"errors"
	"fmt"
	"os"
)

// ErrNotFound is returned when an explicitly configured nodes file is missing.
var ErrNotFound = errors.New("nodesfile: file does not exist")

// ErrEmptyConfig is returned when an explicitly configured nodes file is empty.
var ErrEmptyConfig = errors.New("nodesfile: file containing nodes configuration is empty")

// Load reads the nodes file at path.
//
// An empty path means single-node mode and yields empty content with
// no error. A supplied path must exist and be non-empty.
func Load(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("nodesfile: read %s: %w", path, err)
	}

	if len(raw) == 0 {
		return "", ErrEmptyConfig
	}

	return string(raw), nil
}
