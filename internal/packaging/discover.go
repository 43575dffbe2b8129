package packaging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Discovery failures. A listing error and an empty listing are reported separately.
var (
	ErrListing        = errors.New("failed to list the build directory")
	ErrNoApplications = errors.New("no application bundles in the build directory")
)

// Application is one discovered .app bundle.
type Application struct {
	Path    string
	Name    string
	ModTime time.Time
}

// DiscoverApplications lists the *.app bundles directly under buildDir, sorted by name.
func DiscoverApplications(buildDir string) ([]Application, error) {
	entries, err := os.ReadDir(buildDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrListing, buildDir, err)
	}

	var apps []Application
	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), ".app") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrListing, e.Name(), err)
		}
		apps = append(apps, Application{
			Path:    filepath.Join(buildDir, e.Name()),
			Name:    strings.TrimSuffix(e.Name(), ".app"),
			ModTime: info.ModTime(),
		})
	}
	if len(apps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoApplications, buildDir)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	return apps, nil
}
