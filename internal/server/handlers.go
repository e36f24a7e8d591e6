package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the HTTP API with request logging applied.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/vintages", s.handleVintages)
	mux.HandleFunc("GET /v1/breakdown", s.handleBreakdown)
	mux.HandleFunc("GET /v1/rankings", s.handleRankings)
	mux.HandleFunc("GET /v1/amounts", s.handleAmounts)
	mux.HandleFunc("GET /v1/summary", s.handleSummary)
	mux.HandleFunc("GET /v1/branches", s.handleBranches)
	mux.HandleFunc("GET /v1/export.csv", s.handleExport)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	return s.requestLogger(mux)
}

// ─── Response types ─────────────────────────────────────────────

type vintageJSON struct {
	Cosecha        string  `json:"cosecha"`
	Dimension      string  `json:"dimension,omitempty"`
	Value          string  `json:"value,omitempty"`
	Total          int     `json:"total"`
	Defaults       int     `json:"defaults"`
	Rate           float64 `json:"rate"`
	NonPayments    int     `json:"non_payments"`
	NonPaymentRate float64 `json:"non_payment_rate"`
	Amount         string  `json:"amount"`
}

func toVintageJSON(r model.VintageRow) vintageJSON {
	return vintageJSON{
		Cosecha:        r.Cosecha,
		Dimension:      string(r.Dimension),
		Value:          r.Value,
		Total:          r.Total,
		Defaults:       r.Defaults,
		Rate:           r.Rate,
		NonPayments:    r.NonPayments,
		NonPaymentRate: r.NonPaymentRate,
		Amount:         r.AmountTotal.StringFixed(2),
	}
}

func toVintagesJSON(rows []model.VintageRow) []vintageJSON {
	out := make([]vintageJSON, 0, len(rows))
	for _, r := range rows {
		out = append(out, toVintageJSON(r))
	}
	return out
}

type comparisonJSON struct {
	Dimension string      `json:"dimension,omitempty"`
	Value     string      `json:"value,omitempty"`
	Current   vintageJSON `json:"current"`
	Previous  vintageJSON `json:"previous"`
	Delta     float64     `json:"delta"`
}

type filterJSON struct {
	Regions        []string  `json:"region,omitempty"`
	Branches       []string  `json:"branch,omitempty"`
	Products       []string  `json:"product,omitempty"`
	ClientTypes    []string  `json:"client_type,omitempty"`
	Channels       []string  `json:"channel,omitempty"`
	MaturityMonths int       `json:"maturity_months"`
	ExcludeLatest  bool      `json:"exclude_latest"`
	AsOf           time.Time `json:"as_of"`
}

func toFilterJSON(f pipeline.Filter, asOf time.Time) filterJSON {
	return filterJSON{
		Regions:        f.Dimensions.Regions,
		Branches:       f.Dimensions.Branches,
		Products:       f.Dimensions.Products,
		ClientTypes:    f.Dimensions.ClientTypes,
		Channels:       f.Dimensions.Channels,
		MaturityMonths: f.MaturityMonths,
		ExcludeLatest:  f.ExcludeLatest,
		AsOf:           asOf,
	}
}

// ─── Request parsing ────────────────────────────────────────────

// queryValues returns every value of a repeated param, splitting commas.
func queryValues(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func queryInt(q url.Values, key string, def int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}

// parseFilter builds the query filter; window params fall back to the
// server defaults.
func (s *Service) parseFilter(q url.Values) (pipeline.Filter, error) {
	f := s.cfg.Filter
	f.Dimensions = pipeline.DimensionFilter{
		Regions:     queryValues(q, "region"),
		Branches:    queryValues(q, "branch"),
		Products:    queryValues(q, "product"),
		ClientTypes: queryValues(q, "client_type"),
		Channels:    queryValues(q, "channel"),
	}

	months, err := queryInt(q, "maturity_months", f.MaturityMonths)
	if err != nil {
		return f, err
	}
	f.MaturityMonths = months

	if raw := q.Get("exclude_latest"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("exclude_latest must be a boolean, got %q", raw)
		}
		f.ExcludeLatest = v
	}
	return f, nil
}

func parseDimension(q url.Values, def model.Dimension) (model.Dimension, error) {
	raw := q.Get("by")
	if raw == "" {
		return def, nil
	}
	return model.ParseDimension(raw)
}

// query resolves the request filter against the current dataset.
type query struct {
	data     *dataset
	filter   pipeline.Filter
	asOf     time.Time
	filtered []model.LoanRecord
}

func (s *Service) newQuery(w http.ResponseWriter, r *http.Request) (query, bool) {
	f, err := s.parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return query{}, false
	}
	q := query{data: s.current(), filter: f, asOf: s.now()}
	key, err := pipeline.Key("records", f, q.asOf)
	if err != nil {
		q.filtered = pipeline.Apply(q.data.records, f, q.asOf)
		return q, true
	}
	q.filtered = pipeline.Cached(s.cache, q.data.fingerprint, key, func() []model.LoanRecord {
		return pipeline.Apply(q.data.records, f, q.asOf)
	})
	return q, true
}

// ─── Handlers ───────────────────────────────────────────────────

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleVintages(w http.ResponseWriter, r *http.Request) {
	q, ok := s.newQuery(w, r)
	if !ok {
		return
	}
	rows := s.cache.Query(q.data.records, q.data.fingerprint, q.filter, q.asOf, "")

	resp := struct {
		Filter filterJSON      `json:"filter"`
		Rows   []vintageJSON   `json:"rows"`
		Rates  []float64       `json:"rates"`
		Latest *comparisonJSON `json:"latest,omitempty"`
	}{
		Filter: toFilterJSON(q.filter, q.asOf),
		Rows:   toVintagesJSON(rows),
		Rates:  make([]float64, 0, len(rows)),
	}
	for _, row := range rows {
		resp.Rates = append(resp.Rates, row.Rate)
	}
	if cmp, ok := pipeline.LatestAndPrevious(rows); ok {
		resp.Latest = &comparisonJSON{
			Current:  toVintageJSON(cmp.Current),
			Previous: toVintageJSON(cmp.Previous),
			Delta:    cmp.Delta(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	dim, err := parseDimension(params, model.DimRegion)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	last, err := queryInt(params, "last", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q, ok := s.newQuery(w, r)
	if !ok {
		return
	}

	p := pipeline.BuildPivot(s.cache.Query(q.data.records, q.data.fingerprint, q.filter, q.asOf, dim)).Trim(last, 0)

	type cellJSON struct {
		Cosecha  string  `json:"cosecha"`
		Total    int     `json:"total"`
		Defaults int     `json:"defaults"`
		Rate     float64 `json:"rate"`
	}
	type valueJSON struct {
		Value string     `json:"value"`
		Cells []cellJSON `json:"cells"`
	}
	resp := struct {
		Filter    filterJSON  `json:"filter"`
		Dimension string      `json:"dimension"`
		Cosechas  []string    `json:"cosechas"`
		Values    []valueJSON `json:"values"`
	}{
		Filter:    toFilterJSON(q.filter, q.asOf),
		Dimension: string(dim),
		Cosechas:  append([]string{}, p.Cosechas...),
		Values:    make([]valueJSON, 0, len(p.Values)),
	}
	for _, v := range p.Values {
		vj := valueJSON{Value: v, Cells: []cellJSON{}}
		for _, c := range p.Cosechas {
			if cell, ok := p.Cell(v, c); ok {
				vj.Cells = append(vj.Cells, cellJSON{Cosecha: c, Total: cell.Total, Defaults: cell.Defaults, Rate: cell.Rate})
			}
		}
		resp.Values = append(resp.Values, vj)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleRankings(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	dim, err := parseDimension(params, model.DimBranch)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	top, err := queryInt(params, "top", 5)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	minVolume, err := queryInt(params, "min_volume", s.cfg.MinVolume)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q, ok := s.newQuery(w, r)
	if !ok {
		return
	}

	cosecha := params.Get("cosecha")
	if cosecha == "" {
		cosecha = pipeline.LatestCosecha(q.filtered)
	}
	ranked := pipeline.RankDimension(q.filtered, cosecha, dim, minVolume)

	resp := struct {
		Filter    filterJSON    `json:"filter"`
		Dimension string        `json:"dimension"`
		Cosecha   string        `json:"cosecha"`
		MinVolume int           `json:"min_volume"`
		Best      *vintageJSON  `json:"best,omitempty"`
		Worst     *vintageJSON  `json:"worst,omitempty"`
		Highest   []vintageJSON `json:"highest"`
		Lowest    []vintageJSON `json:"lowest"`
		Ranked    []vintageJSON `json:"ranked"`
	}{
		Filter:    toFilterJSON(q.filter, q.asOf),
		Dimension: string(dim),
		Cosecha:   cosecha,
		MinVolume: minVolume,
		Highest:   toVintagesJSON(pipeline.TopWorst(ranked, top)),
		Lowest:    toVintagesJSON(pipeline.TopBest(ranked, top)),
		Ranked:    toVintagesJSON(ranked),
	}
	if best, worst, ok := pipeline.Extremes(ranked); ok {
		b, wst := toVintageJSON(best), toVintageJSON(worst)
		resp.Best, resp.Worst = &b, &wst
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleAmounts(w http.ResponseWriter, r *http.Request) {
	q, ok := s.newQuery(w, r)
	if !ok {
		return
	}
	buckets, excluded := pipeline.AggregateAmountBuckets(q.filtered)

	type bucketJSON struct {
		Label    string  `json:"label"`
		Lower    string  `json:"lower"`
		Upper    string  `json:"upper,omitempty"`
		Total    int     `json:"total"`
		Defaults int     `json:"defaults"`
		Rate     float64 `json:"rate"`
	}
	resp := struct {
		Filter   filterJSON   `json:"filter"`
		Buckets  []bucketJSON `json:"buckets"`
		Excluded int          `json:"excluded"`
	}{
		Filter:   toFilterJSON(q.filter, q.asOf),
		Buckets:  make([]bucketJSON, 0, len(buckets)),
		Excluded: excluded,
	}
	for _, b := range buckets {
		bj := bucketJSON{
			Label:    b.Label,
			Lower:    b.Lower.StringFixed(0),
			Total:    b.Total,
			Defaults: b.Defaults,
			Rate:     b.Rate,
		}
		if !b.Open {
			bj.Upper = b.Upper.StringFixed(0)
		}
		resp.Buckets = append(resp.Buckets, bj)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleSummary(w http.ResponseWriter, r *http.Request) {
	q, ok := s.newQuery(w, r)
	if !ok {
		return
	}
	sum := pipeline.Summary(q.filtered)
	comparisons := pipeline.Summarize(q.filtered, model.AllDimensions)

	type summaryJSON struct {
		Records      int     `json:"records"`
		Cosechas     int     `json:"cosechas"`
		FirstCosecha string  `json:"first_cosecha,omitempty"`
		LastCosecha  string  `json:"last_cosecha,omitempty"`
		Defaults     int     `json:"defaults"`
		Rate         float64 `json:"rate"`
		Amount       string  `json:"amount"`
	}
	resp := struct {
		Filter      filterJSON       `json:"filter"`
		Summary     summaryJSON      `json:"summary"`
		Comparisons []comparisonJSON `json:"comparisons"`
	}{
		Filter: toFilterJSON(q.filter, q.asOf),
		Summary: summaryJSON{
			Records:      sum.Records,
			Cosechas:     sum.Cosechas,
			FirstCosecha: sum.FirstCosecha,
			LastCosecha:  sum.LastCosecha,
			Defaults:     sum.Defaults,
			Rate:         sum.Rate,
			Amount:       sum.AmountTotal.StringFixed(2),
		},
		Comparisons: make([]comparisonJSON, 0, len(comparisons)),
	}
	for _, c := range comparisons {
		resp.Comparisons = append(resp.Comparisons, comparisonJSON{
			Dimension: string(c.Dimension),
			Value:     c.Value,
			Current:   toVintageJSON(c.Current),
			Previous:  toVintageJSON(c.Previous),
			Delta:     c.Delta(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleBranches(w http.ResponseWriter, r *http.Request) {
	d := s.current()
	branches := pipeline.BranchesForRegions(d.records, queryValues(r.URL.Query(), "region"))
	if branches == nil {
		branches = []string{}
	}
	writeJSON(w, http.StatusOK, branches)
}

func (s *Service) handleExport(w http.ResponseWriter, r *http.Request) {
	q, ok := s.newQuery(w, r)
	if !ok {
		return
	}
	cosecha := r.URL.Query().Get("cosecha")
	if cosecha == "" {
		cosecha = pipeline.LatestCosecha(q.filtered)
	}
	if cosecha == "" || pipeline.CountDefaults(q.filtered, cosecha) == 0 {
		writeError(w, http.StatusNotFound, fmt.Errorf("no FPD cases for cosecha %q with the selected filters", cosecha))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pipeline.ExportFilename(cosecha)))
	if _, err := pipeline.ExportDefaults(w, q.filtered, cosecha); err != nil {
		loggerFrom(r.Context()).Error("export failed", FieldError, err)
	}
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	current := Event{
		Type:      EventSnapshot,
		Timestamp: s.now(),
		Snapshot:  s.snapshotStatus().Summary,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if ev.ID > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", ev.ID)
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
