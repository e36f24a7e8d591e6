// Package server provides the long-running HTTP API over the loan dataset.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"
	"github.com/MichelOvalle/fpd-daily-mk/internal/source"
	"github.com/MichelOvalle/fpd-daily-mk/internal/store"

	"golang.org/x/sync/errgroup"
)

// Config controls the server runtime behavior.
type Config struct {
	DataPath     string
	Source       source.Options
	Filter       pipeline.Filter // defaults applied when a request sets no window params
	MinVolume    int
	UseCache     bool
	Interval     time.Duration
	Addr         string
	EventsBuffer int
	Logger       *slog.Logger
}

// Snapshot describes the dataset currently being served.
type Snapshot struct {
	At           time.Time `json:"at"`
	Fingerprint  string    `json:"fingerprint"`
	Files        int       `json:"files"`
	Records      int       `json:"records"`
	Cosechas     int       `json:"cosechas"`
	FirstCosecha string    `json:"first_cosecha,omitempty"`
	LastCosecha  string    `json:"last_cosecha,omitempty"`
	Defaults     int       `json:"defaults"`
	Rate         float64   `json:"rate"`
	BadRows      int       `json:"bad_rows"`
	BadDates     int       `json:"bad_dates"`
}

// Delta captures the change between two dataset snapshots.
type Delta struct {
	Records  int     `json:"records"`
	Defaults int     `json:"defaults"`
	Rate     float64 `json:"rate"`
}

// Event is emitted whenever the dataset is (re)loaded or a reload fails.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Delta     Delta     `json:"delta"`
	Error     string    `json:"error,omitempty"`
}

const (
	EventSnapshot    = "snapshot"
	EventReload      = "dataset_reload"
	EventReloadError = "reload_error"
)

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time           `json:"started_at"`
	LastPollAt      time.Time           `json:"last_poll_at"`
	LastReloadAt    time.Time           `json:"last_reload_at"`
	PollIntervalSec int                 `json:"poll_interval_sec"`
	PollCount       int64               `json:"poll_count"`
	ReloadCount     int64               `json:"reload_count"`
	DataPath        string              `json:"data_path"`
	Summary         Snapshot            `json:"summary"`
	Cache           pipeline.CacheStats `json:"cache"`
	LastError       string              `json:"last_error,omitempty"`
	EventCount      int                 `json:"event_count"`
	SubscriberCount int                 `json:"subscriber_count"`
}

// dataset is one immutable loaded state. Handlers read it without locking
// once they hold the pointer.
type dataset struct {
	records     []model.LoanRecord
	fingerprint string
	files       int
	stats       source.ParseStats
}

// Service provides the polling loop and HTTP API.
type Service struct {
	cfg     Config
	log     *slog.Logger
	cache   *pipeline.QueryCache
	metrics *metrics
	now     func() time.Time

	mu           sync.RWMutex
	data         *dataset
	startedAt    time.Time
	lastPollAt   time.Time
	lastReloadAt time.Time
	pollCount    int64
	reloadCount  int64
	lastError    string
	hasSnapshot  bool
	snapshot     Snapshot
	nextEventID  int64
	events       []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new service with the provided config.
func New(cfg Config) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		cfg:       cfg,
		log:       cfg.Logger.With(FieldComponent, "server"),
		cache:     pipeline.NewQueryCache(256),
		metrics:   newMetrics(),
		now:       time.Now,
		data:      &dataset{},
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Run serves HTTP and polls the dataset until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Seed the dataset so the first requests have data.
	s.pollOnce()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", "addr", s.cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.pollOnce()
			}
		}
	})

	return g.Wait()
}

// pollOnce reloads the dataset when its fingerprint changed. A failed
// reload keeps serving the previous data.
func (s *Service) pollOnce() {
	now := s.now()

	s.mu.RLock()
	current := s.data
	s.mu.RUnlock()

	files, err := source.ScanDir(s.cfg.DataPath)
	if err == nil && current.fingerprint != "" && source.Fingerprint(files) == current.fingerprint {
		s.mu.Lock()
		s.lastPollAt = now
		s.pollCount++
		s.mu.Unlock()
		s.metrics.polls.Inc()
		return
	}

	start := time.Now()
	var next *dataset
	if err == nil {
		next, err = s.load()
	}
	s.metrics.polls.Inc()
	if err != nil {
		s.recordError(now, err)
		return
	}

	s.metrics.loadSeconds.Observe(time.Since(start).Seconds())
	s.metrics.reloads.Inc()
	s.metrics.records.Set(float64(len(next.records)))
	s.metrics.badRows.Set(float64(next.stats.BadRows + next.stats.BadDates))

	s.swap(now, next)
	s.log.Info("dataset loaded",
		"records", len(next.records),
		"files", next.files,
		"fingerprint", next.fingerprint,
		FieldDuration, time.Since(start).Milliseconds())
}

func (s *Service) recordError(now time.Time, err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.lastPollAt = now
	s.pollCount++
	snap := s.snapshot
	s.nextEventID++
	ev := Event{
		ID:        s.nextEventID,
		Type:      EventReloadError,
		Timestamp: now,
		Snapshot:  snap,
		Error:     err.Error(),
	}
	s.mu.Unlock()

	s.metrics.pollErrors.Inc()
	s.log.Error("dataset load failed", FieldError, err)
	s.publishEvent(ev)
}

// swap installs a freshly loaded dataset and emits a reload event.
func (s *Service) swap(now time.Time, next *dataset) {
	snap := snapshotFrom(next, now)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.data = next
	s.hasSnapshot = true
	s.snapshot = snap
	s.lastPollAt = now
	s.lastReloadAt = now
	s.pollCount++
	s.reloadCount++
	s.lastError = ""

	s.nextEventID++
	ev := Event{
		ID:        s.nextEventID,
		Type:      EventSnapshot,
		Timestamp: now,
		Snapshot:  snap,
	}
	if prevExists {
		ev.Type = EventReload
		ev.Delta = diffSnapshots(prev, snap)
	}
	s.mu.Unlock()

	s.publishEvent(ev)
}

func (s *Service) load() (*dataset, error) {
	if s.cfg.UseCache {
		cache, err := store.Open(pipeline.CachePath())
		if err == nil {
			defer func() { _ = cache.Close() }()
			cr, loadErr := pipeline.LoadWithCache(s.cfg.DataPath, s.cfg.Source, cache, nil)
			if loadErr == nil {
				if cr.CacheWriteErrors > 0 {
					s.log.Warn("parse cache not updated",
						"files", cr.CacheWriteErrors, FieldError, cr.CacheWriteErr)
				}
				return &dataset{
					records:     cr.Records,
					fingerprint: cr.Fingerprint,
					files:       cr.TotalFiles,
					stats:       cr.Stats,
				}, nil
			}
			s.log.Warn("cache load failed, doing full parse", FieldError, loadErr)
		}
	}

	result, err := pipeline.Load(s.cfg.DataPath, s.cfg.Source, nil)
	if err != nil {
		return nil, err
	}
	return &dataset{
		records:     result.Records,
		fingerprint: result.Fingerprint,
		files:       result.TotalFiles,
		stats:       result.Stats,
	}, nil
}

func snapshotFrom(d *dataset, at time.Time) Snapshot {
	sum := pipeline.Summary(d.records)
	return Snapshot{
		At:           at,
		Fingerprint:  d.fingerprint,
		Files:        d.files,
		Records:      sum.Records,
		Cosechas:     sum.Cosechas,
		FirstCosecha: sum.FirstCosecha,
		LastCosecha:  sum.LastCosecha,
		Defaults:     sum.Defaults,
		Rate:         sum.Rate,
		BadRows:      d.stats.BadRows,
		BadDates:     d.stats.BadDates,
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Records:  curr.Records - prev.Records,
		Defaults: curr.Defaults - prev.Defaults,
		Rate:     curr.Rate - prev.Rate,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) current() *dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		LastReloadAt:    s.lastReloadAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		ReloadCount:     s.reloadCount,
		DataPath:        s.cfg.DataPath,
		Summary:         s.snapshot,
		Cache:           s.cache.Stats(),
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	s.metrics.subscribers.Set(float64(len(s.subs)))
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
	s.metrics.subscribers.Set(float64(len(s.subs)))
}
