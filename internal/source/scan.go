// Package source discovers loadable model versions on disk. The expected
// layout is <base>/<name>/<version>/, one numeric directory per version.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/vineetp6/serving/internal/common/fsutil"
	"github.com/vineetp6/serving/pkg/types"
)

// ScanDir walks a base directory of model version directories and builds
// the list of load requests. Non-directories and non-numeric version
// entries are skipped; a model directory with no numeric subdirectory
// contributes nothing. Results are ordered by name, then version
// ascending, so publishes replay in load order.
func ScanDir(dir string) ([]types.ModelSource, error) {
	abs, err := fsutil.AbsDir(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var sources []types.ModelSource
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		modelDir := filepath.Join(abs, name)
		versions, err := os.ReadDir(modelDir)
		if err != nil {
			return nil, fmt.Errorf("read model dir %s: %w", name, err)
		}
		for _, v := range versions {
			if !v.IsDir() {
				continue
			}
			num, err := strconv.ParseInt(v.Name(), 10, 64)
			if err != nil || num <= 0 {
				continue
			}
			sources = append(sources, types.ModelSource{
				Name:    name,
				Version: num,
				Path:    filepath.Join(modelDir, v.Name()),
			})
		}
	}
	slices.SortFunc(sources, func(a, b types.ModelSource) int {
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}
			return 1
		}
		return int(a.Version - b.Version)
	})
	return sources, nil
}
