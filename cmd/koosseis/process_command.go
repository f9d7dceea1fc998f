package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"koosseis/internal"
	"koosseis/internal/checkpoint"
	"koosseis/internal/config"
	"koosseis/internal/llm"
	"koosseis/internal/metrics"
	"koosseis/internal/normalizer"
	"koosseis/internal/pipeline"
	"koosseis/internal/source"
	"koosseis/internal/storage"
	"koosseis/internal/storage/mysqlstore"
)

const metadataNextStart = "last_next_start"

type processOptions struct {
	startFrom   int
	limit       int
	input       string
	source      string
	sink        string
	resume      bool
	metricsAddr string
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Extract and normalize instrumentation for a window of works",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			run := *cfg
			limit := run.Limit()
			flags := cmd.Flags()
			if flags.Changed("start-from") {
				run.StartFrom = opts.startFrom
			}
			if flags.Changed("limit") {
				limit = opts.limit
			}
			if flags.Changed("input") {
				run.InputFile = opts.input
			}
			if flags.Changed("source") {
				run.SourceKind = opts.source
			}
			if flags.Changed("sink") {
				run.Sink = opts.sink
			}
			if flags.Changed("metrics-addr") {
				run.MetricsAddr = opts.metricsAddr
			}
			resumeFromStored := opts.resume && !flags.Changed("start-from")
			return runProcess(cmd.Context(), cmd.OutOrStdout(), run, limit, opts.resume, resumeFromStored, ctx.logger())
		},
	}

	cmd.Flags().IntVar(&opts.startFrom, "start-from", 0, "Number of leading records to skip (default START_FROM)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum records to attempt, 0 for no limit (default from TEST_MODE/TEST_LIMIT)")
	cmd.Flags().StringVar(&opts.input, "input", "", "Source file for the JSON source kinds (default INPUT_FILE)")
	cmd.Flags().StringVar(&opts.source, "source", "", "composers_json|table_json|sqlite|mysql (default SOURCE_KIND)")
	cmd.Flags().StringVar(&opts.sink, "sink", "", "none|sqlite|mysql (default SINK)")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Keep the existing checkpoint and replace entries for re-attempted works; without --start-from, continue where the last run stopped")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	return cmd
}

func runProcess(ctx context.Context, out io.Writer, cfg config.Config, limit int, resume, resumeFromStored bool, l *log.Logger) error {
	kind := internal.SourceKind(strings.TrimSpace(cfg.SourceKind))
	sinkKind := strings.ToLower(strings.TrimSpace(cfg.Sink))

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if resumeFromStored {
		next, ok, err := storedNextStart(db)
		if err != nil {
			return err
		}
		if ok {
			l.Info("continuing from last run", "startFrom", next)
			cfg.StartFrom = next
		}
	}

	var mysqlStore *mysqlstore.Store
	if kind == internal.SourceMySQL || sinkKind == "mysql" {
		mysqlStore, err = mysqlstore.Open(cfg.MySQLDSN(), cfg.MySQLSourceTable, cfg.MySQLTargetTable)
		if err != nil {
			return err
		}
		defer mysqlStore.Close()
	}

	srcOpts := source.Options{Kind: kind, Path: cfg.InputFile, Works: db}
	if mysqlStore != nil {
		srcOpts.Texts = mysqlStore
	}
	records, err := source.Load(ctx, srcOpts)
	if err != nil {
		return fmt.Errorf("load %s source: %w", kind, err)
	}
	l.Info("loaded records", "source", kind, "count", len(records))

	var sink pipeline.Sink
	switch sinkKind {
	case "", "none":
	case "sqlite":
		sink = db
	case "mysql":
		sink = mysqlStore
	default:
		return fmt.Errorf("unsupported sink: %s", cfg.Sink)
	}

	rules, err := pipeline.LoadRules(cfg.HeuristicsFile)
	if err != nil {
		return err
	}
	m := metrics.New()
	norm, err := newNormalizer(ctx, cfg, m, l)
	if err != nil {
		return err
	}

	store, err := checkpoint.Open(cfg.ResultsFile, cfg.FailedFile)
	if err != nil {
		if errors.Is(err, checkpoint.ErrLocked) {
			return fmt.Errorf("another run is writing %s: %w", cfg.ResultsFile, err)
		}
		return err
	}
	defer store.Close()

	runnerOpts := []pipeline.RunnerOption{pipeline.WithLogger(l), pipeline.WithMetrics(m)}
	if sink != nil {
		runnerOpts = append(runnerOpts, pipeline.WithSink(sink))
	}
	if resume {
		results, failed, err := store.Load()
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		l.Info("resuming", "results", len(results), "failed", len(failed))
		runnerOpts = append(runnerOpts, pipeline.WithSeed(results, failed))
	}

	if strings.TrimSpace(cfg.MetricsAddr) != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Error("metrics server stopped", "addr", cfg.MetricsAddr, "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		l.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	runCfg := pipeline.RunConfig{StartFrom: cfg.StartFrom, Limit: limit, Delay: cfg.Delay}
	runner := pipeline.NewRunner(runCfg, pipeline.NewExtractor(rules), norm, store, runnerOpts...)

	startedAt := time.Now()
	summary, runErr := runner.Run(ctx, records)

	run := storage.RunRecord{
		TraceID:    uuid.NewString(),
		Source:     string(kind),
		StartFrom:  runCfg.StartFrom,
		Limit:      runCfg.Limit,
		Counts:     summary.Counts(),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	if err := db.InsertRun(run); err != nil {
		l.Warn("record run failed", "err", err)
	}
	if err := db.SetMetadata(metadataNextStart, strconv.Itoa(summary.NextStart)); err != nil {
		l.Warn("record next start failed", "err", err)
	}

	fmt.Fprintln(out, renderSummary(summary))
	if summary.Halted || runErr != nil {
		fmt.Fprintf(out, "resume with: koosseis process --start-from %d --resume\n", summary.NextStart)
	}
	fmt.Fprintf(out, "results: %s\nfailed: %s\ntrace: %s\n", store.ResultsPath(), store.FailedPath(), run.TraceID)

	return runErr
}

// storedNextStart reads the resume offset left by the previous run.
func storedNextStart(db *storage.DB) (int, bool, error) {
	value, err := db.GetMetadata(metadataNextStart)
	if err != nil || value == nil {
		return 0, false, err
	}
	next, err := strconv.Atoi(*value)
	if err != nil {
		return 0, false, fmt.Errorf("bad %s %q: %w", metadataNextStart, *value, err)
	}
	return next, true, nil
}

func newNormalizer(ctx context.Context, cfg config.Config, m *metrics.Metrics, l *log.Logger) (*normalizer.Client, error) {
	instructions, err := llm.LoadInstructions(cfg.InstructionsFile)
	if err != nil {
		return nil, err
	}
	model, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}

	chOpts := []llm.Option{llm.WithHistoryTurns(cfg.NormalizerHistoryTurns)}
	if cfg.NormalizerJSONMode {
		chOpts = append(chOpts, llm.WithJSONMode())
	}
	channel, err := llm.NewChannel(cfg.NormalizerChannel, model, instructions, cfg.NormalizerRPM, chOpts...)
	if err != nil {
		return nil, err
	}

	return normalizer.New(channel,
		normalizer.WithMaxAttempts(cfg.NormalizerMaxAttempts),
		normalizer.WithBackoffUnit(cfg.NormalizerBackoffUnit),
		normalizer.WithBackoffHook(func(int, time.Duration) { m.Retry() }),
		normalizer.WithLogger(l),
	), nil
}

func renderSummary(s pipeline.Summary) string {
	rows := [][]string{
		{"processed", strconv.Itoa(s.Processed)},
		{"skipped", strconv.Itoa(s.Skipped)},
		{"attempted", strconv.Itoa(s.Attempted)},
		{"dispatched", strconv.Itoa(s.Dispatched)},
		{"results", strconv.Itoa(s.Results)},
		{"failed", strconv.Itoa(s.Failed)},
		{"checkpoint errors", strconv.Itoa(s.CheckpointErrors)},
		{"sink errors", strconv.Itoa(s.SinkErrors)},
		{"next start", strconv.Itoa(s.NextStart)},
	}
	return renderTable([]string{"Run", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}
