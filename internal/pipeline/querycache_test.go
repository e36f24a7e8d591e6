package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

func TestQueryCache_HitAndInvalidate(t *testing.T) {
	records := syntheticPortfolio(500)
	asOf := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	c := NewQueryCache(16)
	f := DefaultFilter()

	first := c.Query(records, "fp1", f, asOf, "")
	second := c.Query(records, "fp1", f, asOf, "")
	if len(first) != len(second) {
		t.Fatal("cached result differs")
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 1 || s.Size != 1 {
		t.Errorf("stats = %+v, want 1 hit 1 miss", s)
	}

	// New dataset fingerprint clears the cache.
	c.Query(records[:10], "fp2", f, asOf, "")
	if s := c.Stats(); s.Misses != 2 || s.Size != 1 {
		t.Errorf("after fingerprint change stats = %+v", s)
	}

	c.Invalidate()
	if s := c.Stats(); s.Size != 0 {
		t.Errorf("size after Invalidate = %d", s.Size)
	}
}

func TestQueryCache_KeyNormalizesSetOrder(t *testing.T) {
	asOf := time.Date(2024, 5, 15, 8, 0, 0, 0, time.UTC)
	a, err := Key("vintages", Filter{Dimensions: DimensionFilter{Regions: []string{"Norte", "Sur"}}}, asOf)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Key("vintages", Filter{Dimensions: DimensionFilter{Regions: []string{"Sur", "Norte"}}}, asOf.Add(2*time.Hour))
	if a != b {
		t.Errorf("keys differ for reordered set / same day: %s vs %s", a, b)
	}
	c, _ := Key("vintages", Filter{Dimensions: DimensionFilter{Regions: []string{"Norte"}}}, asOf)
	if a == c {
		t.Error("different filters share a key")
	}
	d, _ := Key("rankings", Filter{Dimensions: DimensionFilter{Regions: []string{"Norte", "Sur"}}}, asOf)
	if a == d {
		t.Error("different kinds share a key")
	}
}

func TestQueryCache_Eviction(t *testing.T) {
	c := NewQueryCache(2)
	for i, k := range []string{"a", "b", "c"} {
		v := i
		Cached(c, "fp", k, func() int { return v })
	}
	if s := c.Stats(); s.Size != 2 {
		t.Errorf("size = %d, want 2", s.Size)
	}
	calls := 0
	Cached(c, "fp", "a", func() int { calls++; return 0 })
	if calls != 1 {
		t.Error("oldest entry was not evicted")
	}
}

func TestQueryCache_Concurrent(t *testing.T) {
	records := syntheticPortfolio(300)
	asOf := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	c := NewQueryCache(8)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dim := model.AllDimensions[i%len(model.AllDimensions)]
			_ = c.Query(records, "fp", DefaultFilter(), asOf, dim)
		}(i)
	}
	wg.Wait()
	if s := c.Stats(); s.Hits+s.Misses != 8 {
		t.Errorf("stats = %+v", s)
	}
}

func TestCached_NilCache(t *testing.T) {
	if got := Cached[int](nil, "fp", "k", func() int { return 7 }); got != 7 {
		t.Errorf("got %d", got)
	}
}
