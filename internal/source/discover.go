package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
)

var sourceExtensions = map[string]bool{
	".gz":    true,
	".zst":   true,
	".jsonl": true,
	".json":  true,
}

// Dir returns the snapshot directory holding the files of kind, e.g.
// <snapshot>/works.
func Dir(snapshotDir string, kind entity.Kind) string {
	return filepath.Join(snapshotDir, string(kind)+"s")
}

// Discover lists every source file of kind below the snapshot directory in
// lexical order. A missing kind directory yields no files.
func Discover(snapshotDir string, kind entity.Kind) ([]string, error) {
	root := Dir(snapshotDir, kind)
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if sourceExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("discovering %s files in %s: %w", kind, root, err)
	}
	sort.Strings(files)
	return files, nil
}
