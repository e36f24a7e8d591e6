package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/source"
	"github.com/MichelOvalle/fpd-daily-mk/internal/store"
)

// CachedLoadResult extends LoadResult with cache metadata.
type CachedLoadResult struct {
	LoadResult
	CacheHits int
	Reparsed  int
	Pruned    int
	// Failed cache saves and prunes. The records are still complete; the
	// affected files are reparsed on the next load.
	CacheWriteErrors int
	CacheWriteErr    error // first failure
}

// ParseCache is the per-file record store LoadWithCache diffs against.
type ParseCache interface {
	GetTrackedFiles() (map[string]store.FileInfo, error)
	LoadRecords(paths []string) ([]model.LoanRecord, error)
	SaveFile(df source.DiscoveredFile, rulesHash string, res source.ParseResult) error
	DeleteFile(path string) error
}

func (r *CachedLoadResult) cacheWriteFailed(err error) {
	r.CacheWriteErrors++
	if r.CacheWriteErr == nil {
		r.CacheWriteErr = err
	}
}

// RulesHash fingerprints the normalization options. Cached records parsed
// under different rules are never reused.
func RulesHash(opts source.Options) string {
	h, err := hashstructure.Hash(opts, hashstructure.FormatV2, nil)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", h)
}

// LoadWithCache discovers, diffs against cache, parses only changed files,
// and returns the combined record set in file order.
func LoadWithCache(dataPath string, opts source.Options, cache ParseCache, progressFn ProgressFunc) (*CachedLoadResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	files, err := source.ScanDir(dataPath)
	if err != nil {
		return nil, err
	}

	result := &CachedLoadResult{
		LoadResult: LoadResult{
			Files:       files,
			Fingerprint: source.Fingerprint(files),
			TotalFiles:  len(files),
		},
	}
	if len(files) == 0 {
		return result, nil
	}

	tracked, err := cache.GetTrackedFiles()
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}

	rules := RulesHash(opts)
	perFile := make([][]model.LoanRecord, len(files))
	present := make(map[string]struct{}, len(files))
	var toReparse []int

	for i, f := range files {
		present[f.Path] = struct{}{}
		cached, ok := tracked[f.Path]
		if !ok || !cached.Matches(f, rules) {
			toReparse = append(toReparse, i)
			continue
		}
		recs, err := cache.LoadRecords([]string{f.Path})
		if err != nil {
			return nil, err
		}
		perFile[i] = recs
		result.Stats.Add(cached.Stats)
		result.ParsedFiles++
		result.CacheHits++
	}

	for path := range tracked {
		if _, ok := present[path]; ok {
			continue
		}
		if err := cache.DeleteFile(path); err != nil {
			result.cacheWriteFailed(fmt.Errorf("pruning %s: %w", path, err))
			continue
		}
		result.Pruned++
	}

	if len(toReparse) > 0 {
		changed := make([]source.DiscoveredFile, len(toReparse))
		for j, i := range toReparse {
			changed[j] = files[i]
		}

		parsed := parseAll(changed, opts, func(n int) {
			if progressFn != nil {
				progressFn(n+result.CacheHits, result.TotalFiles)
			}
		})

		var fresh LoadResult
		if err := collect(&fresh, parsed); err != nil {
			return nil, err
		}
		result.ParsedFiles += fresh.ParsedFiles
		result.Stats.Add(fresh.Stats)
		result.Reparsed = len(changed)

		for j, pr := range parsed {
			perFile[toReparse[j]] = pr.Records
			if err := cache.SaveFile(changed[j], rules, pr); err != nil {
				result.cacheWriteFailed(fmt.Errorf("caching %s: %w", changed[j].Path, err))
			}
		}
	}

	for _, recs := range perFile {
		result.Records = append(result.Records, recs...)
	}
	return result, nil
}

// CacheDir returns the platform-appropriate cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "fpd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "fpd")
}

// CachePath returns the full path to the cache database.
func CachePath() string {
	return filepath.Join(CacheDir(), "records.db")
}
