package archive

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/pmtiles"
)

// dirOpener opens archives stored as files under a base directory.
type dirOpener struct {
	baseDir string
}

func (d *dirOpener) open(name string) (*pmtiles.Reader, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	return pmtiles.Open(filepath.Join(d.baseDir, cleaned+".pmtiles"))
}

// NewDirStore serves archives from {baseDir}/{name}.pmtiles.
// healthName is the archive probed by HealthCheck.
func NewDirStore(baseDir, healthName string) Store {
	return newStore(&dirOpener{baseDir: baseDir}, healthName)
}

// cleanName rejects names that would escape the base directory.
func cleanName(name string) (string, error) {
	name = strings.TrimSuffix(name, ".pmtiles")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid archive name %q", name)
	}
	return name, nil
}
