package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MichelOvalle/fpd-daily-mk/internal/source"
	"github.com/MichelOvalle/fpd-daily-mk/internal/store"
)

func writeCSV(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "2024-01.csv",
		"id_credito,fecha_apertura,fpd2,region",
		"1,05/01/2024,1,Norte",
		"2,06/01/2024,0,Sur",
	)
	writeCSV(t, dir, "2024-02.csv",
		"id_credito;fecha_apertura;fpd2;region",
		"3;05/02/2024;0;Norte",
		"4;bad;0;Norte",
	)

	var calls atomic.Int64
	res, err := Load(dir, source.DefaultOptions(), func(_, total int) {
		calls.Add(1)
		if total != 2 {
			t.Errorf("total = %d, want 2", total)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalFiles != 2 || res.ParsedFiles != 2 {
		t.Errorf("files = %d/%d", res.ParsedFiles, res.TotalFiles)
	}
	if len(res.Records) != 3 {
		t.Errorf("records = %d, want 3", len(res.Records))
	}
	if res.Stats.BadDates != 1 || res.Stats.Rows != 4 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if res.Fingerprint == "" {
		t.Error("empty fingerprint")
	}
	if calls.Load() != 2 {
		t.Errorf("progress calls = %d, want 2", calls.Load())
	}
}

func TestLoad_MissingColumnIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "ok.csv", "id_credito,fecha_apertura,fpd2", "1,05/01/2024,1")
	writeCSV(t, dir, "bad.csv", "id_credito,fpd2", "1,1")

	_, err := Load(dir, source.DefaultOptions(), nil)
	if !errors.Is(err, source.ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
}

func TestLoad_MissingDataset(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope"), source.DefaultOptions(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoad_InvalidOutcomeRule(t *testing.T) {
	opts := source.DefaultOptions()
	opts.Outcome = source.OutcomeRule{Mode: source.OutcomeMarker}
	if _, err := Load(t.TempDir(), opts, nil); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadWithCache(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "id_credito,fecha_apertura,fpd2", "1,05/01/2024,1", "2,05/01/2024,0")
	writeCSV(t, dir, "b.csv", "id_credito,fecha_apertura,fpd2", "3,05/02/2024,1")

	cache, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cache.Close() }()

	opts := source.DefaultOptions()
	first, err := LoadWithCache(dir, opts, cache, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Reparsed != 2 || first.CacheHits != 0 || len(first.Records) != 3 {
		t.Fatalf("first load = %+v", first)
	}

	second, err := LoadWithCache(dir, opts, cache, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.CacheHits != 2 || second.Reparsed != 0 || len(second.Records) != 3 {
		t.Errorf("second load = hits %d reparsed %d records %d", second.CacheHits, second.Reparsed, len(second.Records))
	}
	if second.Fingerprint != first.Fingerprint {
		t.Error("fingerprint changed without edits")
	}

	// Touching one file reparses only that file.
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(a, later, later); err != nil {
		t.Fatal(err)
	}
	third, err := LoadWithCache(dir, opts, cache, nil)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheHits != 1 || third.Reparsed != 1 {
		t.Errorf("third load = hits %d reparsed %d", third.CacheHits, third.Reparsed)
	}
	if third.Fingerprint == first.Fingerprint {
		t.Error("fingerprint unchanged after touch")
	}
	if third.Records[0].ID != "1" || third.Records[2].ID != "3" {
		t.Errorf("record order not preserved: %s..%s", third.Records[0].ID, third.Records[2].ID)
	}

	// Changing the outcome rule invalidates every cached file.
	opts.Outcome = source.OutcomeRule{Mode: source.OutcomeBoolean}
	fourth, err := LoadWithCache(dir, opts, cache, nil)
	if err != nil {
		t.Fatal(err)
	}
	if fourth.Reparsed != 2 {
		t.Errorf("rule change reparsed %d, want 2", fourth.Reparsed)
	}

	// Removed files are pruned from the cache.
	if err := os.Remove(a); err != nil {
		t.Fatal(err)
	}
	fifth, err := LoadWithCache(dir, opts, cache, nil)
	if err != nil {
		t.Fatal(err)
	}
	if fifth.Pruned != 1 || len(fifth.Records) != 1 {
		t.Errorf("fifth load = pruned %d records %d", fifth.Pruned, len(fifth.Records))
	}
}

var errCacheWrite = errors.New("disk full")

// readOnlyCache serves reads from a real cache and fails every write.
type readOnlyCache struct{ *store.Cache }

func (readOnlyCache) SaveFile(source.DiscoveredFile, string, source.ParseResult) error {
	return errCacheWrite
}

func (readOnlyCache) DeleteFile(string) error { return errCacheWrite }

func TestLoadWithCache_WriteErrorsCounted(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "id_credito,fecha_apertura,fpd2", "1,05/01/2024,1")
	writeCSV(t, dir, "b.csv", "id_credito,fecha_apertura,fpd2", "2,05/02/2024,0")

	cache, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cache.Close() }()
	ro := readOnlyCache{cache}
	opts := source.DefaultOptions()

	res, err := LoadWithCache(dir, opts, ro, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(res.Records))
	}
	if res.CacheWriteErrors != 2 || !errors.Is(res.CacheWriteErr, errCacheWrite) {
		t.Errorf("write errors = %d (%v), want 2", res.CacheWriteErrors, res.CacheWriteErr)
	}

	again, err := LoadWithCache(dir, opts, ro, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.Reparsed != 2 || again.CacheHits != 0 {
		t.Errorf("unsaved files should be reparsed: hits %d reparsed %d", again.CacheHits, again.Reparsed)
	}

	// Populate through the real cache, then fail to prune a removed file.
	if _, err := LoadWithCache(dir, opts, cache, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(a); err != nil {
		t.Fatal(err)
	}
	pruned, err := LoadWithCache(dir, opts, ro, nil)
	if err != nil {
		t.Fatal(err)
	}
	if pruned.Pruned != 0 || pruned.CacheWriteErrors != 1 || len(pruned.Records) != 1 {
		t.Errorf("prune failure = pruned %d errors %d records %d", pruned.Pruned, pruned.CacheWriteErrors, len(pruned.Records))
	}
}
