package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"detcover/config"
	"detcover/internal/analyzer"
	"detcover/internal/attack"
	"detcover/internal/cache"
	"detcover/internal/extract"
	"detcover/internal/logger"
	"detcover/internal/metrics"
	"detcover/internal/opstore"
	"detcover/internal/publish"
	"detcover/internal/source"
	"detcover/pkg/models"
)

// ErrOperationNotFound marks an operation id that resolved to nothing.
var ErrOperationNotFound = errors.New("operation not found")

// WarningNoTechniques flags a report for an operation whose chain carried
// no technique-qualified links. No source is queried in that case.
const WarningNoTechniques = "operation executed no technique-qualified links"

const (
	defaultTimeframe    = 24 * time.Hour
	defaultQueryTimeout = 30 * time.Second
)

// ConfiguredSource pairs a constructed source with its configured state.
// Err marks a source that failed construction; it is reported by the
// status endpoint but never queried.
type ConfiguredSource struct {
	Name    string
	Enabled bool
	Source  source.Source
	Err     error
}

type sourceEntry struct {
	name      string
	enabled   bool
	src       source.Source
	configErr error
}

// Options carries the engine's optional collaborators. Any of them may be
// nil; the engine degrades to the corresponding feature being off.
type Options struct {
	Reports   *cache.RedisReportCache
	Publisher *publish.ReportPublisher
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Engine drives a coverage analysis end to end: operation lookup,
// technique extraction, cache-checked concurrent source queries,
// reconciliation, recommendations, and report assembly.
type Engine struct {
	store            opstore.Store
	entries          []sourceEntry
	queries          *cache.QueryCache
	reports          *cache.RedisReportCache
	publisher        *publish.ReportPublisher
	metrics          *metrics.Metrics
	defaultTimeframe time.Duration
	queryTimeout     time.Duration
	now              func() time.Time
}

// New constructs an engine from configuration. Sources that fail to
// construct are kept as misconfigured entries: they show up in the status
// endpoint but are never queried.
func New(cfg config.DetCoverConfig, store opstore.Store, opts Options) *Engine {
	configured := make([]ConfiguredSource, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		cs := ConfiguredSource{Name: sc.Name, Enabled: sc.Enabled}
		src, err := source.New(sc)
		if err != nil {
			cs.Err = err
			logger.Warnf("Source %s is misconfigured and will be skipped: %v", sc.Name, err)
		} else {
			cs.Source = src
			if cs.Name == "" {
				cs.Name = src.Name()
			}
		}
		configured = append(configured, cs)
	}

	timeframe := time.Duration(cfg.Analysis.DefaultTimeframeHours) * time.Hour

	var queries *cache.QueryCache
	if cfg.Cache.Enabled {
		queries = cache.NewQueryCache(cfg.Cache.TTL, cfg.Cache.MaxEntries)
	}

	e := NewWithSources(store, configured, opts)
	e.queries = queries
	if timeframe > 0 {
		e.defaultTimeframe = timeframe
	}
	return e
}

// NewWithSources constructs an engine over pre-built sources. The order of
// the slice is the iteration order for queries, reports, and tie-breaks.
func NewWithSources(store opstore.Store, sources []ConfiguredSource, opts Options) *Engine {
	entries := make([]sourceEntry, 0, len(sources))
	for _, cs := range sources {
		entries = append(entries, sourceEntry{
			name:      cs.Name,
			enabled:   cs.Enabled,
			src:       cs.Source,
			configErr: cs.Err,
		})
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		store:            store,
		entries:          entries,
		reports:          opts.Reports,
		publisher:        opts.Publisher,
		metrics:          opts.Metrics,
		defaultTimeframe: defaultTimeframe,
		queryTimeout:     defaultQueryTimeout,
		now:              now,
	}
}

// AnalyzeOperation produces a coverage report for one recorded operation.
// timeframeHours bounds the query window past the operation start; zero
// uses the configured default. Only an unresolved operation id is fatal;
// every per-source failure is folded into the report.
func (e *Engine) AnalyzeOperation(ctx context.Context, operationID string, timeframeHours int) (*models.Report, error) {
	started := e.now()
	if e.metrics != nil {
		e.metrics.AnalysesTotal.Inc()
		defer func() {
			e.metrics.AnalysisDuration.Observe(time.Since(started).Seconds())
		}()
	}

	if cached, err := e.reports.Get(ctx, operationID); err != nil {
		logger.Warnf("Report cache lookup failed for %s: %v", operationID, err)
	} else if cached != nil {
		if e.metrics != nil {
			e.metrics.ReportCacheHits.Inc()
		}
		logger.Debugf("Report cache hit for operation %s", operationID)
		return cached, nil
	}

	op, err := e.lookup(ctx, operationID)
	if err != nil {
		if e.metrics != nil {
			e.metrics.AnalysisErrors.Inc()
		}
		return nil, err
	}

	records := extract.Techniques(op)
	report := &models.Report{
		ReportID:       uuid.NewString(),
		Success:        true,
		OperationID:    op.ID,
		OperationName:  op.Name,
		OperationStart: op.Start,
		OperationEnd:   op.Finish,
		TechniquesUsed: summarize(records),
		SourceResults:  []models.SourceStats{},
		AnalysisTime:   e.now().UTC(),
	}

	if len(records) == 0 {
		report.Warning = WarningNoTechniques
		report.OverallMetrics.UniqueDetections = []string{}
		report.Recommendations = []string{}
		logger.Infof("Operation %s used no techniques; skipping source queries", op.ID)
		return e.finish(ctx, report)
	}

	ids := extract.IDs(records)
	window := e.window(op, timeframeHours)

	outcomes := e.querySources(ctx, ids, window)
	if err := ctx.Err(); err != nil {
		if e.metrics != nil {
			e.metrics.AnalysisErrors.Inc()
		}
		return nil, err
	}

	stats, overall := analyzer.Analyze(ids, outcomes, op.Start)
	report.SourceResults = stats
	report.OverallMetrics = overall
	report.Recommendations = analyzer.Recommend(ids, stats, overall)

	logger.Infof("Analyzed operation %s: %d techniques, %d sources, coverage %.1f%%",
		op.ID, len(ids), len(stats), overall.CoveragePercentage)
	return e.finish(ctx, report)
}

// TechniqueCoverage reports, per technique the operation executed, how
// many events any source produced for it and when.
func (e *Engine) TechniqueCoverage(ctx context.Context, operationID string) (map[string]*models.TechniqueCoverage, error) {
	op, err := e.lookup(ctx, operationID)
	if err != nil {
		return nil, err
	}

	records := extract.Techniques(op)
	out := make(map[string]*models.TechniqueCoverage, len(records))
	for _, rec := range records {
		out[rec.TechniqueID] = &models.TechniqueCoverage{Samples: []models.Detection{}}
	}
	if len(records) == 0 {
		return out, nil
	}

	ids := extract.IDs(records)
	outcomes := e.querySources(ctx, ids, e.window(op, 0))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, outcome := range outcomes {
		if !outcome.Success {
			continue
		}
		for _, ev := range outcome.Events {
			cov, ok := out[attack.Normalize(ev.TechniqueID)]
			if !ok {
				continue
			}
			cov.EventsCount++
			cov.Detected = true
			if len(cov.Samples) < models.MaxCoverageSamples {
				cov.Samples = append(cov.Samples, ev)
			}
			if cov.FirstDetection == nil || ev.Timestamp.Before(*cov.FirstDetection) {
				ts := ev.Timestamp
				cov.FirstDetection = &ts
			}
			if cov.LastDetection == nil || ev.Timestamp.After(*cov.LastDetection) {
				ts := ev.Timestamp
				cov.LastDetection = &ts
			}
		}
	}
	return out, nil
}

// SourceStatus probes every configured source.
func (e *Engine) SourceStatus(ctx context.Context) map[string]models.SourceStatus {
	out := make(map[string]models.SourceStatus, len(e.entries))
	for _, entry := range e.entries {
		st := models.SourceStatus{Configured: true, Enabled: entry.enabled}
		switch {
		case entry.configErr != nil:
			st.Status = "misconfigured: " + entry.configErr.Error()
		case !entry.enabled:
			st.Status = "disabled"
		default:
			probeCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
			err := entry.src.CheckStatus(probeCtx)
			cancel()
			if err != nil {
				st.Status = "unreachable: " + err.Error()
			} else {
				st.Reachable = true
				st.Status = "ok"
			}
		}
		out[entry.name] = st
	}
	return out
}

// Simulate runs an ad-hoc deterministic simulation over an arbitrary
// technique set, without touching the operation store or real backends.
func (e *Engine) Simulate(ctx context.Context, techniqueIDs []string, timeframeHours int) (*models.SimulationResult, error) {
	timeframe := time.Duration(timeframeHours) * time.Hour
	if timeframe <= 0 {
		timeframe = e.defaultTimeframe
	}
	end := e.now().UTC()
	window := source.Window{Start: end.Add(-timeframe), End: end}

	sim := source.NewSimulated(source.SimulatedConfig{Name: "simulation", QueryDelay: time.Millisecond})
	events, err := sim.Query(ctx, techniqueIDs, window)
	if err != nil {
		return nil, err
	}

	tested := normalizeSet(techniqueIDs)
	detected := make(map[string]struct{})
	for _, ev := range events {
		detected[ev.TechniqueID] = struct{}{}
	}

	result := &models.SimulationResult{
		TechniquesTested:   tested,
		EventsFound:        len(events),
		DetectedTechniques: sortedSet(detected),
	}
	if len(tested) > 0 {
		result.DetectionRate = float64(len(detected)) / float64(len(tested)) * 100
	}
	return result, nil
}

// EvictReport drops a cached report, forcing the next analysis to run.
func (e *Engine) EvictReport(ctx context.Context, operationID string) (bool, error) {
	return e.reports.Evict(ctx, operationID)
}

// Close tears down source connections and caches.
func (e *Engine) Close() {
	for _, entry := range e.entries {
		if entry.src == nil {
			continue
		}
		if err := entry.src.Disconnect(); err != nil {
			logger.Warnf("Disconnect %s: %v", entry.name, err)
		}
	}
	if err := e.reports.Close(); err != nil {
		logger.Warnf("Close report cache: %v", err)
	}
	e.publisher.Close()
}

func (e *Engine) lookup(ctx context.Context, operationID string) (*models.Operation, error) {
	ops, err := e.store.Locate(ctx, opstore.Filter{ID: operationID})
	if err != nil {
		return nil, fmt.Errorf("locate operation %s: %w", operationID, err)
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
	}
	return ops[0], nil
}

func (e *Engine) window(op *models.Operation, timeframeHours int) source.Window {
	timeframe := time.Duration(timeframeHours) * time.Hour
	if timeframe <= 0 {
		timeframe = e.defaultTimeframe
	}
	start := op.Start
	end := op.End(e.now())
	if limit := start.Add(timeframe); end.After(limit) {
		end = limit
	}
	if !end.After(start) {
		end = start.Add(timeframe)
	}
	return source.Window{Start: start, End: end}
}

// querySources fans out one query per enabled source and waits for the
// full set to settle. Results come back in configured source order; a
// failing source never disturbs its siblings.
func (e *Engine) querySources(ctx context.Context, ids []string, window source.Window) []analyzer.SourceOutcome {
	type slot struct {
		idx     int
		outcome analyzer.SourceOutcome
	}

	active := make([]sourceEntry, 0, len(e.entries))
	for _, entry := range e.entries {
		if entry.enabled && entry.configErr == nil {
			active = append(active, entry)
		}
	}

	results := make([]analyzer.SourceOutcome, len(active))
	var wg sync.WaitGroup
	ch := make(chan slot, len(active))

	for i, entry := range active {
		wg.Add(1)
		go func(i int, entry sourceEntry) {
			defer wg.Done()
			ch <- slot{idx: i, outcome: e.queryOne(ctx, entry, ids, window)}
		}(i, entry)
	}
	wg.Wait()
	close(ch)

	for s := range ch {
		results[s.idx] = s.outcome
	}
	return results
}

func (e *Engine) queryOne(ctx context.Context, entry sourceEntry, ids []string, window source.Window) analyzer.SourceOutcome {
	outcome := analyzer.SourceOutcome{Source: entry.name}
	if e.metrics != nil {
		e.metrics.SourceQueries.WithLabelValues(entry.name).Inc()
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	run := func(qctx context.Context) ([]models.Detection, error) {
		return entry.src.Query(qctx, ids, window)
	}

	began := time.Now()
	var events []models.Detection
	var cached bool
	var err error
	if e.queries != nil {
		key := cache.Key(entry.name, ids, window.Start, window.End)
		events, cached, err = e.queries.Fetch(queryCtx, key, run)
		if e.metrics != nil && err == nil {
			if cached {
				e.metrics.QueryCacheHits.Inc()
			} else {
				e.metrics.QueryCacheMisses.Inc()
			}
		}
	} else {
		events, err = run(queryCtx)
	}

	if err != nil {
		if e.metrics != nil {
			e.metrics.SourceQueryErrors.WithLabelValues(entry.name).Inc()
		}
		logger.Warnf("Source %s query failed: %v", entry.name, err)
		outcome.Err = err
		return outcome
	}

	outcome.Success = true
	outcome.Cached = cached
	outcome.Events = events
	outcome.QuerySeconds = time.Since(began).Seconds()
	return outcome
}

func (e *Engine) finish(ctx context.Context, report *models.Report) (*models.Report, error) {
	if err := e.reports.Put(ctx, report.OperationID, report); err != nil {
		logger.Warnf("Report cache write failed for %s: %v", report.OperationID, err)
	}
	if e.publisher != nil {
		if err := e.publisher.Publish(report); err != nil {
			if e.metrics != nil {
				e.metrics.PublishErrorsTotal.Inc()
			}
			logger.Warnf("Report publish failed for %s: %v", report.OperationID, err)
		} else if e.metrics != nil {
			e.metrics.ReportsPublished.Inc()
		}
	}
	return report, nil
}

func summarize(records []*models.TechniqueRecord) models.TechniqueSummary {
	summary := models.TechniqueSummary{
		Total:   len(records),
		List:    []string{},
		Details: make(map[string]*models.TechniqueRecord, len(records)),
	}
	for _, rec := range records {
		summary.List = append(summary.List, rec.TechniqueID)
		summary.Details[rec.TechniqueID] = rec
	}
	return summary
}

func normalizeSet(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if !attack.IsValid(id) {
			continue
		}
		seen[attack.Normalize(id)] = struct{}{}
	}
	return sortedSet(seen)
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
