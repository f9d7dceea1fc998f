package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"koosseis/internal"
	"koosseis/internal/logger"
	"koosseis/internal/metrics"
	"koosseis/internal/normalizer"
	"koosseis/internal/util"
)

const (
	msgNoTextExtracted = "no instrumentation text extracted"
	msgNoTextProvided  = "no instrumentation text provided"
)

// RunConfig is fixed for the lifetime of a Runner.
type RunConfig struct {
	StartFrom int
	Limit     int
	Delay     time.Duration
}

// Cursor counts records: every record seen is Processed, records inside the
// start offset are Skipped, the rest are Attempted, and Dispatched counts the
// attempts that reached the normalizer. A record that stops the run is
// Processed but neither Skipped nor Attempted.
type Cursor struct {
	Processed  int
	Skipped    int
	Attempted  int
	Dispatched int
}

type Normalizer interface {
	Normalize(ctx context.Context, text string) (normalizer.Result, error)
}

type Checkpointer interface {
	Persist(results []internal.Success, failed []internal.Failure) error
}

type Sink interface {
	Save(ctx context.Context, success internal.Success) error
}

// Summary reports a finished run. NextStart is the start offset that resumes
// right after the last recorded outcome.
type Summary struct {
	Cursor
	Results          int
	Failed           int
	Halted           bool
	NextStart        int
	CheckpointErrors int
	SinkErrors       int
}

func (s Summary) Counts() map[string]int {
	return map[string]int{
		"processed":        s.Processed,
		"skipped":          s.Skipped,
		"attempted":        s.Attempted,
		"dispatched":       s.Dispatched,
		"results":          s.Results,
		"failed":           s.Failed,
		"checkpointErrors": s.CheckpointErrors,
		"sinkErrors":       s.SinkErrors,
	}
}

type Runner struct {
	cfg        RunConfig
	extractor  *Extractor
	normalizer Normalizer
	checkpoint Checkpointer
	sink       Sink
	metrics    *metrics.Metrics
	logger     *log.Logger
	sleep      func(context.Context, time.Duration) error

	mu               sync.Mutex
	cursor           Cursor
	results          []internal.Success
	failed           []internal.Failure
	seededResults    []bool
	seededFailed     []bool
	checkpointErrors int
	sinkErrors       int
}

type RunnerOption func(*Runner)

func WithSink(s Sink) RunnerOption {
	return func(r *Runner) { r.sink = s }
}

func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSleep replaces the inter-request sleep.
func WithSleep(fn func(context.Context, time.Duration) error) RunnerOption {
	return func(r *Runner) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithSeed starts the runner from an earlier checkpoint. Every outcome
// recorded for a key takes the place of one seeded entry with that key,
// results before failures, so works sharing a key resume without growing.
func WithSeed(results []internal.Success, failed []internal.Failure) RunnerOption {
	return func(r *Runner) {
		r.results = append(r.results, results...)
		r.failed = append(r.failed, failed...)
		for range results {
			r.seededResults = append(r.seededResults, true)
		}
		for range failed {
			r.seededFailed = append(r.seededFailed, true)
		}
	}
}

func NewRunner(cfg RunConfig, extractor *Extractor, norm Normalizer, cp Checkpointer, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:        cfg,
		extractor:  extractor,
		normalizer: norm,
		checkpoint: cp,
		logger:     logger.Discard(),
		sleep:      util.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Runner) Cursor() Cursor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// Outcomes returns copies of both partitions.
func (r *Runner) Outcomes() ([]internal.Success, []internal.Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]internal.Success(nil), r.results...), append([]internal.Failure(nil), r.failed...)
}

// Run walks records in order. The checkpoint is rewritten after every
// attempted record; a failed rewrite is logged and the run goes on. The final
// rewrite is the only one whose failure is returned.
func (r *Runner) Run(ctx context.Context, records []internal.SourceRecord) (Summary, error) {
	halted := false
	var runErr error

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		r.mu.Lock()
		r.cursor.Processed++
		cur := r.cursor
		r.mu.Unlock()
		r.metrics.Record("processed")

		if cur.Processed <= r.cfg.StartFrom {
			r.mu.Lock()
			r.cursor.Skipped++
			r.mu.Unlock()
			r.metrics.Record("skipped")
			continue
		}

		if r.cfg.Limit > 0 && cur.Attempted >= r.cfg.Limit {
			r.logger.Info("attempt limit reached", "limit", r.cfg.Limit, "processed", cur.Processed)
			halted = true
			break
		}

		r.logger.Info("processing", "index", cur.Processed-1, "id", rec.ID, "title", rec.Title)
		outcome, dispatched, err := r.attempt(ctx, rec)
		if err != nil {
			runErr = err
			break
		}

		r.mu.Lock()
		r.cursor.Attempted++
		if dispatched {
			r.cursor.Dispatched++
		}
		r.mu.Unlock()
		r.metrics.Record("attempted")
		if dispatched {
			r.metrics.Record("dispatched")
		}

		r.record(outcome)
		if err := r.persist(); err != nil {
			r.logger.Error("checkpoint write failed", "id", rec.ID, "err", err)
		}

		if dispatched {
			if err := r.sleep(ctx, r.cfg.Delay); err != nil {
				runErr = err
				break
			}
		}
	}

	finalErr := r.persist()
	summary := r.summary(halted)
	if finalErr != nil {
		return summary, fmt.Errorf("final checkpoint: %w", finalErr)
	}
	return summary, runErr
}

// attempt produces the outcome for one record. A non-nil error means the run
// was cancelled mid-attempt and nothing should be recorded.
func (r *Runner) attempt(ctx context.Context, rec internal.SourceRecord) (internal.Outcome, bool, error) {
	var text string
	if rec.HasInstrumentationText() {
		text = strings.TrimSpace(*rec.InstrumentationText)
		if text == "" {
			r.logger.Info("no instrumentation text", "id", rec.ID)
			return failure(rec, "", internal.FailureNoCandidate, msgNoTextProvided), false, nil
		}
	} else {
		x := r.extractor.Extract(rec.Description)
		if x.Candidate == nil {
			r.logger.Info("no candidate line", "id", rec.ID, "lines", len(rec.Description))
			return failure(rec, "", internal.FailureNoCandidate, msgNoTextExtracted), false, nil
		}
		text = x.Candidate.Text
		meta := x.Metadata()
		r.logger.Debug("candidate", "id", rec.ID, "text", util.Truncate(text, 50), "score", x.Candidate.Score,
			"year", meta[string(MetadataYear)], "duration", meta[string(MetadataDuration)])
	}

	start := time.Now()
	res, err := r.normalizer.Normalize(ctx, text)
	r.metrics.ObserveNormalize(time.Since(start))
	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return internal.Outcome{}, false, ctx.Err()
		}
		kind, msg := classifyFailure(err)
		r.logger.Warn("normalization failed", "id", rec.ID, "kind", kind, "err", msg)
		return failure(rec, text, kind, msg), true, nil
	}

	success := internal.Success{
		ID:              rec.ID,
		Composer:        rec.Composer,
		Title:           rec.Title,
		OriginalText:    text,
		Instrumentation: res.Document,
	}
	if rec.Composer != "" {
		success.WorkID = rec.ID
	}
	if r.sink != nil {
		if err := r.sink.Save(ctx, success); err != nil {
			success.PersistError = err.Error()
			r.mu.Lock()
			r.sinkErrors++
			r.mu.Unlock()
			r.metrics.SinkError()
			r.logger.Error("sink write failed", "id", rec.ID, "err", err)
		}
	}
	r.logger.Info("normalized", "id", rec.ID, "category", res.Instrumentation.Category, "attempts", res.Attempts)
	return internal.Outcome{Success: &success}, true, nil
}

func failure(rec internal.SourceRecord, text string, kind internal.FailureKind, msg string) internal.Outcome {
	f := internal.Failure{
		ID:            rec.ID,
		Composer:      rec.Composer,
		Title:         rec.Title,
		ExtractedText: text,
		Kind:          kind,
		Error:         msg,
	}
	if text == "" {
		f.Description = rec.DescriptionText()
	}
	return internal.Outcome{Failure: &f}
}

func classifyFailure(err error) (internal.FailureKind, string) {
	var nerr *normalizer.Error
	if errors.As(err, &nerr) {
		if nerr.Err != nil {
			return nerr.Kind, nerr.Err.Error()
		}
		return nerr.Kind, nerr.Error()
	}
	return internal.FailureTransport, err.Error()
}

func (r *Runner) record(o internal.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.metrics.Outcome(o)

	key := o.Key()
	if i := seededIndex(r.results, r.seededResults, func(s internal.Success) string { return s.ID }, key); i >= 0 {
		if o.Success != nil {
			r.results[i] = *o.Success
			r.seededResults[i] = false
			return
		}
		r.results = append(r.results[:i], r.results[i+1:]...)
		r.seededResults = append(r.seededResults[:i], r.seededResults[i+1:]...)
	} else if i := seededIndex(r.failed, r.seededFailed, func(f internal.Failure) string { return f.ID }, key); i >= 0 {
		if o.Failure != nil {
			r.failed[i] = *o.Failure
			r.seededFailed[i] = false
			return
		}
		r.failed = append(r.failed[:i], r.failed[i+1:]...)
		r.seededFailed = append(r.seededFailed[:i], r.seededFailed[i+1:]...)
	}

	switch {
	case o.Success != nil:
		r.results = append(r.results, *o.Success)
		r.seededResults = append(r.seededResults, false)
	case o.Failure != nil:
		r.failed = append(r.failed, *o.Failure)
		r.seededFailed = append(r.seededFailed, false)
	}
}

// seededIndex finds the first entry with key that still holds seeded data.
func seededIndex[T any](entries []T, seeded []bool, id func(T) string, key string) int {
	for i, e := range entries {
		if seeded[i] && id(e) == key {
			return i
		}
	}
	return -1
}

func (r *Runner) persist() error {
	results, failed := r.Outcomes()
	if err := r.checkpoint.Persist(results, failed); err != nil {
		r.mu.Lock()
		r.checkpointErrors++
		r.mu.Unlock()
		r.metrics.CheckpointError()
		return err
	}
	return nil
}

func (r *Runner) summary(halted bool) Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Summary{
		Cursor:           r.cursor,
		Results:          len(r.results),
		Failed:           len(r.failed),
		Halted:           halted,
		NextStart:        r.cursor.Skipped + r.cursor.Attempted,
		CheckpointErrors: r.checkpointErrors,
		SinkErrors:       r.sinkErrors,
	}
}
