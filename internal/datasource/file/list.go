// Package file replays recorded API pages from the local disk. A manifest
// lists one page file per line, in page order, so a capture taken with curl
// can be probed offline.
package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadList reads a manifest line by line and returns the non-empty,
// non-comment lines in order. Lines starting with '#' after trimming are
// comments.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// FromManifest builds a Replay from a manifest. Relative page paths resolve
// against the manifest's directory.
func FromManifest(path string) (*Replay, error) {
	lines, err := ReadList(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for i, l := range lines {
		if !filepath.IsAbs(l) {
			lines[i] = filepath.Join(dir, l)
		}
	}
	return NewReplay(lines...), nil
}
