package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"
	"github.com/MichelOvalle/fpd-daily-mk/internal/source"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 8, 15, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// group appends n loans for one cosecha and branch, the first d defaulted.
func group(out []model.LoanRecord, cosecha, region, branch string, n, d int) []model.LoanRecord {
	orig, _ := time.Parse("2006-01-02", cosecha+"-05")
	for i := range n {
		out = append(out, model.LoanRecord{
			ID:          fmt.Sprintf("%s-%s-%d", cosecha, branch, i),
			Origination: orig,
			Cosecha:     cosecha,
			Default:     i < d,
			Amount:      decimal.NewFromInt(int64(1500 + i*2500)),
			HasAmount:   true,
			Region:      region,
			Branch:      branch,
			Product:     "Personal",
			ClientType:  "Nuevo",
			Channel:     "Digital",
		})
	}
	return out
}

func fixture() []model.LoanRecord {
	var recs []model.LoanRecord
	recs = group(recs, "2024-04", "Norte", "Monterrey", 10, 1)
	recs = group(recs, "2024-04", "Sur", "Merida", 10, 3)
	recs = group(recs, "2024-05", "Norte", "Monterrey", 10, 2)
	recs = group(recs, "2024-05", "Sur", "Merida", 10, 4)
	recs = group(recs, "2024-05", "Sur", "Cancun", 3, 3) // below min volume
	return recs
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	s := New(Config{
		Filter:       pipeline.DefaultFilter(),
		MinVolume:    pipeline.DefaultMinVolume,
		Interval:     time.Minute,
		EventsBuffer: 10,
		Logger:       quietLogger(),
	})
	s.now = func() time.Time { return fixedNow }
	s.swap(fixedNow, &dataset{records: fixture(), fingerprint: "fixture", files: 1})
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestService(t).Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestVintages(t *testing.T) {
	h := newTestService(t).Handler()

	type resp struct {
		Rows []struct {
			Cosecha  string  `json:"cosecha"`
			Total    int     `json:"total"`
			Defaults int     `json:"defaults"`
			Rate     float64 `json:"rate"`
		} `json:"rows"`
		Rates  []float64 `json:"rates"`
		Latest *struct {
			Delta float64 `json:"delta"`
		} `json:"latest"`
	}

	// The maturity window as of mid-August keeps April and May loans.
	rec := get(t, h, "/v1/vintages")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[resp](t, rec)
	require.Len(t, body.Rows, 2)
	assert.Equal(t, "2024-04", body.Rows[0].Cosecha)
	assert.Equal(t, 20, body.Rows[0].Total)
	assert.InDelta(t, 20.0, body.Rows[0].Rate, 1e-9)
	assert.Equal(t, 23, body.Rows[1].Total)
	assert.Equal(t, 9, body.Rows[1].Defaults)
	assert.Len(t, body.Rates, 2)
	require.NotNil(t, body.Latest)
	assert.InDelta(t, 9.0*100/23-20.0, body.Latest.Delta, 1e-9)

	rec = get(t, h, "/v1/vintages?region=Norte&exclude_latest=true")
	body = decode[resp](t, rec)
	require.Len(t, body.Rows, 1)
	assert.Equal(t, 10, body.Rows[0].Total)
	require.NotNil(t, body.Latest, "a single cosecha compares against itself")
	assert.Zero(t, body.Latest.Delta)
}

func TestVintagesMaturityParam(t *testing.T) {
	h := newTestService(t).Handler()

	// Six months back from mid-August leaves nothing mature.
	rec := get(t, h, "/v1/vintages?maturity_months=6")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":[]`)
}

func TestBadParams(t *testing.T) {
	h := newTestService(t).Handler()
	for _, target := range []string{
		"/v1/vintages?maturity_months=-1",
		"/v1/vintages?exclude_latest=maybe",
		"/v1/breakdown?by=color",
		"/v1/rankings?top=x",
	} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"error"`, target)
	}
}

func TestBreakdown(t *testing.T) {
	rec := get(t, newTestService(t).Handler(), "/v1/breakdown?by=region&last=1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Dimension string   `json:"dimension"`
		Cosechas  []string `json:"cosechas"`
		Values    []struct {
			Value string `json:"value"`
			Cells []struct {
				Rate float64 `json:"rate"`
			} `json:"cells"`
		} `json:"values"`
	}](t, rec)

	assert.Equal(t, "region", body.Dimension)
	assert.Equal(t, []string{"2024-05"}, body.Cosechas)
	require.Len(t, body.Values, 2)
	// Sur has more loans, so it sorts first.
	assert.Equal(t, "Sur", body.Values[0].Value)
	require.Len(t, body.Values[0].Cells, 1)
	assert.InDelta(t, 7.0*100/13, body.Values[0].Cells[0].Rate, 1e-9)
}

func TestRankings(t *testing.T) {
	rec := get(t, newTestService(t).Handler(), "/v1/rankings?by=branch&top=1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Cosecha string `json:"cosecha"`
		Best    struct {
			Value string `json:"value"`
		} `json:"best"`
		Worst struct {
			Value string `json:"value"`
		} `json:"worst"`
		Highest []json.RawMessage `json:"highest"`
		Ranked  []json.RawMessage `json:"ranked"`
	}](t, rec)

	assert.Equal(t, "2024-05", body.Cosecha)
	assert.Equal(t, "Monterrey", body.Best.Value)
	assert.Equal(t, "Merida", body.Worst.Value)
	assert.Len(t, body.Highest, 1)
	assert.Len(t, body.Ranked, 2, "Cancun is below the minimum volume")

	rec = get(t, newTestService(t).Handler(), "/v1/rankings?by=branch&min_volume=0")
	assert.Contains(t, rec.Body.String(), "Cancun")
}

func TestAmounts(t *testing.T) {
	rec := get(t, newTestService(t).Handler(), "/v1/amounts")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Buckets []struct {
			Label string `json:"label"`
			Total int    `json:"total"`
		} `json:"buckets"`
		Excluded int `json:"excluded"`
	}](t, rec)

	total := 0
	for _, b := range body.Buckets {
		total += b.Total
	}
	assert.Len(t, body.Buckets, 6)
	assert.Equal(t, 43, total)
	assert.Zero(t, body.Excluded)
}

func TestSummary(t *testing.T) {
	rec := get(t, newTestService(t).Handler(), "/v1/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Summary struct {
			Records  int `json:"records"`
			Cosechas int `json:"cosechas"`
		} `json:"summary"`
		Comparisons []struct {
			Dimension string `json:"dimension"`
			Value     string `json:"value"`
		} `json:"comparisons"`
	}](t, rec)

	assert.Equal(t, 43, body.Summary.Records)
	assert.Equal(t, 2, body.Summary.Cosechas)
	assert.NotEmpty(t, body.Comparisons)
	assert.Equal(t, "region", body.Comparisons[0].Dimension)
}

func TestBranches(t *testing.T) {
	h := newTestService(t).Handler()

	rec := get(t, h, "/v1/branches?region=Sur")
	assert.Equal(t, []string{"Cancun", "Merida"}, decode[[]string](t, rec))

	rec = get(t, h, "/v1/branches?region=Centro")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestExportCSV(t *testing.T) {
	rec := get(t, newTestService(t).Handler(), "/v1/export.csv?cosecha=2024-04&region=Sur")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "fpd_2024-04.csv")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, pipeline.ExportColumns, rows[0])
	for _, row := range rows[1:] {
		assert.Equal(t, "Merida", row[4])
	}
}

func TestExportNoData(t *testing.T) {
	h := newTestService(t).Handler()
	for _, target := range []string{
		"/v1/export.csv?region=Centro",
		"/v1/export.csv?cosecha=1999-01",
		// 2024-04 has defaults, none of them in Cancun.
		"/v1/export.csv?cosecha=2024-04&branch=Cancun",
	} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"error"`, target)
		assert.Empty(t, rec.Header().Get("Content-Disposition"), target)
	}
}

func TestRequestID(t *testing.T) {
	h := newTestService(t).Handler()

	rec := get(t, h, "/healthz")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestService(t).Handler()
	get(t, h, "/v1/vintages")

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `fpd_http_requests_total{code="200",route="GET /v1/vintages"} 1`)
	assert.Contains(t, body, "fpd_dataset_polls_total")
}

func TestStatusReportsCache(t *testing.T) {
	h := newTestService(t).Handler()
	get(t, h, "/v1/vintages")
	get(t, h, "/v1/vintages")

	st := decode[Status](t, get(t, h, "/v1/status"))
	assert.Equal(t, 43, st.Summary.Records)
	assert.Equal(t, "fixture", st.Summary.Fingerprint)
	assert.Positive(t, st.Cache.Hits)
}

func TestPublishEventRingBuffer(t *testing.T) {
	s := New(Config{
		Interval:     10 * time.Second,
		EventsBuffer: 2,
		Logger:       quietLogger(),
	})

	s.publishEvent(Event{ID: 1})
	s.publishEvent(Event{ID: 2})
	s.publishEvent(Event{ID: 3})

	s.mu.RLock()
	defer s.mu.RUnlock()

	require.Len(t, s.events, 2)
	assert.Equal(t, int64(2), s.events[0].ID)
	assert.Equal(t, int64(3), s.events[1].ID)
}

const extractHeader = "id_credito,fecha_apertura,fpd2,np,monto_otorgado,region,sucursal,producto,tipo_cliente,canal"

func TestPollReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "originaciones.csv")
	lines := []string{
		extractHeader,
		"1,05/04/2024,1,0,2500,Norte,Monterrey,Personal,Nuevo,Digital",
		"2,06/04/2024,0,0,4500,Norte,Monterrey,Personal,Nuevo,Digital",
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))

	s := New(Config{
		DataPath: dir,
		Source:   source.DefaultOptions(),
		Filter:   pipeline.DefaultFilter(),
		Logger:   quietLogger(),
	})
	s.now = func() time.Time { return fixedNow }

	s.pollOnce()
	st := s.snapshotStatus()
	require.Empty(t, st.LastError)
	assert.Equal(t, 2, st.Summary.Records)
	assert.Equal(t, int64(1), st.ReloadCount)

	// Unchanged files: no reload.
	s.pollOnce()
	st = s.snapshotStatus()
	assert.Equal(t, int64(1), st.ReloadCount)
	assert.Equal(t, int64(2), st.PollCount)

	lines = append(lines, "3,07/04/2024,1,0,9000,Sur,Merida,Personal,Nuevo,Digital")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	s.pollOnce()

	s.mu.RLock()
	events := append([]Event(nil), s.events...)
	s.mu.RUnlock()
	require.Len(t, events, 2)
	assert.Equal(t, EventSnapshot, events[0].Type)
	assert.Equal(t, EventReload, events[1].Type)
	assert.Equal(t, 1, events[1].Delta.Records)
	assert.Equal(t, 1, events[1].Delta.Defaults)
}

func TestPollErrorKeepsPreviousData(t *testing.T) {
	s := newTestService(t)
	s.cfg.DataPath = filepath.Join(t.TempDir(), "missing")

	s.pollOnce()
	st := s.snapshotStatus()
	assert.NotEmpty(t, st.LastError)
	assert.Equal(t, 43, st.Summary.Records)
	assert.Len(t, s.current().records, 43)

	s.mu.RLock()
	last := s.events[len(s.events)-1]
	s.mu.RUnlock()
	assert.Equal(t, EventReloadError, last.Type)
}
