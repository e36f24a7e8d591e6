package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/hashstructure/v2"
)

// ScanDir resolves a dataset location into its CSV files.
// A regular file is returned as-is regardless of extension; a directory is
// walked recursively for *.csv files. A missing path is an error.
func ScanDir(dataPath string) ([]DiscoveredFile, error) {
	info, err := os.Stat(dataPath)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataPath, err)
	}
	if !info.IsDir() {
		return []DiscoveredFile{{
			Path:    dataPath,
			MtimeNs: info.ModTime().UnixNano(),
			Size:    info.Size(),
		}}, nil
	}

	var files []DiscoveredFile
	err = filepath.WalkDir(dataPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if d.IsDir() {
			if path != dataPath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // vanished between readdir and stat
		}
		files = append(files, DiscoveredFile{
			Path:    path,
			MtimeNs: fi.ModTime().UnixNano(),
			Size:    fi.Size(),
		})
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

// Fingerprint identifies a dataset snapshot by the path, mtime and size of
// every file. Any edit, addition or removal changes the result.
func Fingerprint(files []DiscoveredFile) string {
	if len(files) == 0 {
		return ""
	}
	h, err := hashstructure.Hash(files, hashstructure.FormatV2, nil)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", h)
}
