// Package catalog loads biomarker reference definitions from YAML files and
// keeps the in-memory catalog hot-reloaded when the files change on disk.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"flomentum/domain/biomarker"
	"flomentum/domain/core"
)

// catalogFile is the on-disk document shape; one file holds one or more
// biomarker definitions.
type catalogFile struct {
	Biomarkers []biomarker.Biomarker `yaml:"biomarkers"`
}

// Load reads every *.yaml file under dir and builds a catalog snapshot.
// The snapshot version is a hash of all file contents, so an unchanged
// reload is detectable.
func Load(dir string) (*biomarker.Snapshot, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("globbing catalog dir %s: %w", dir, err)
	}
	if ymls, err := filepath.Glob(filepath.Join(dir, "*.yml")); err == nil {
		paths = append(paths, ymls...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files in %s", dir)
	}
	sort.Strings(paths)

	var markers []biomarker.Biomarker
	var versionInput strings.Builder
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading catalog file %s: %w", path, err)
		}
		versionInput.WriteString(filepath.Base(path))
		versionInput.Write(data)

		var doc catalogFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing catalog file %s: %w", path, err)
		}
		markers = append(markers, doc.Biomarkers...)
	}

	version := core.NewHash([]byte(versionInput.String()))
	snap, err := biomarker.BuildSnapshot(markers, version)
	if err != nil {
		return nil, fmt.Errorf("building catalog snapshot: %w", err)
	}
	return snap, nil
}

// NewCatalog loads dir and wraps the snapshot in a swappable catalog
func NewCatalog(dir string) (*biomarker.Catalog, error) {
	snap, err := Load(dir)
	if err != nil {
		return nil, err
	}
	return biomarker.NewCatalog(snap), nil
}
