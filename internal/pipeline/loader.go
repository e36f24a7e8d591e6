package pipeline

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/source"
)

// LoadResult holds the output of the full data loading pipeline.
type LoadResult struct {
	Records     []model.LoanRecord
	Files       []source.DiscoveredFile
	Fingerprint string
	Stats       source.ParseStats
	TotalFiles  int
	ParsedFiles int
}

// ProgressFunc is called during loading to report progress.
// current is the number of files processed so far, total is the total count.
type ProgressFunc func(current, total int)

// Load discovers and parses every extract under dataPath.
// It uses a bounded worker pool for parallel parsing. Any file-level error
// (unreadable file, missing required column) fails the whole load.
func Load(dataPath string, opts source.Options, progressFn ProgressFunc) (*LoadResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	files, err := source.ScanDir(dataPath)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{
		Files:       files,
		Fingerprint: source.Fingerprint(files),
		TotalFiles:  len(files),
	}
	if len(files) == 0 {
		return result, nil
	}

	results := parseAll(files, opts, func(n int) {
		if progressFn != nil {
			progressFn(n, len(files))
		}
	})

	if err := collect(result, results); err != nil {
		return nil, err
	}
	return result, nil
}

// parseAll parses files on a bounded worker pool, preserving input order.
func parseAll(files []source.DiscoveredFile, opts source.Options, done func(n int)) []source.ParseResult {
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers < 1 {
		numWorkers = 4
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make([]source.ParseResult, len(files))
	var wg sync.WaitGroup
	var processed atomic.Int64

	for i := range files {
		work <- i
	}
	close(work)

	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				results[idx] = source.ParseFile(files[idx], opts)
				done(int(processed.Add(1)))
			}
		}()
	}

	wg.Wait()
	return results
}

func collect(result *LoadResult, results []source.ParseResult) error {
	var errs []error
	for _, pr := range results {
		if pr.Err != nil {
			errs = append(errs, pr.Err)
			continue
		}
		result.ParsedFiles++
		result.Stats.Add(pr.Stats)
		result.Records = append(result.Records, pr.Records...)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	return nil
}
