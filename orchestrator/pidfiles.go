package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/KIT-MAMID/benchfleet/automation"
	"golang.org/x/sys/unix"
)

const pidDirPermissions = 0755

// errMarkerIncomplete means the agent has created the marker but not yet written the pid.
var errMarkerIncomplete = errors.New("pid marker has no content yet")

// ensurePIDDir creates the pid marker directory if it is missing.
// returns nil if it already exists and permissions are suitable
func ensurePIDDir(dir string) error {
	if err := unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, pidDirPermissions); err != nil {
		return fmt.Errorf("could not create pid directory `%s`: %w", dir, err)
	}
	return nil
}

// scanPIDMarkers lists the pid markers in dir in lexical order.
// A missing directory holds no markers.
func scanPIDMarkers(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not list pid directory `%s`: %w", dir, err)
	}
	var markers []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), automation.PIDFileSuffix) {
			continue
		}
		markers = append(markers, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(markers)
	return markers, nil
}

// readPIDMarker returns the pid stored in the marker at path.
// It returns an error matching fs.ErrNotExist if the marker vanished and one
// matching errMarkerIncomplete while the agent is still writing it.
func readPIDMarker(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(content))
	if text == "" {
		return 0, fmt.Errorf("marker `%s`: %w", path, errMarkerIncomplete)
	}
	pid, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("unparsable pid `%s` in marker `%s`", text, path)
	}
	return pid, nil
}

func removePIDMarkers(dir string) error {
	markers, err := scanPIDMarkers(dir)
	if err != nil {
		return err
	}
	for _, marker := range markers {
		if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("could not remove pid marker: %w", err)
		}
	}
	return nil
}
