package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/fatih/semgroup"
	"github.com/ppiankov/guardscan/internal/aggregator"
	"github.com/ppiankov/guardscan/internal/matcher"
	"github.com/ppiankov/guardscan/internal/models"
	"github.com/ppiankov/guardscan/internal/reporter"
	"github.com/ppiankov/guardscan/internal/walker"
	"go.uber.org/zap"
)

const (
	// DefaultFileTimeout is the per-file matching budget
	DefaultFileTimeout = 500 * time.Millisecond

	// DefaultBatchSize is how many walked files one pool task scans
	DefaultBatchSize = 32
)

// Config holds configuration for a scan
type Config struct {
	Threads     int
	FileTimeout time.Duration
	BatchSize   int
	Walker      walker.Options
	Logger      *zap.Logger
}

// Result is the raw outcome of a scan, before aggregation.
// Findings and Skipped are sorted, never in completion order.
type Result struct {
	Root         string
	Findings     []models.Finding
	Skipped      []models.Skip
	FilesScanned int
	Incomplete   bool
}

// Scanner runs the matcher over every file the walker admits, using a
// bounded pool of batch tasks
type Scanner struct {
	config Config
	engine *matcher.Engine
	walker *walker.Walker
	logger *zap.Logger
}

// batchResult is what one pool task hands to the merger
type batchResult struct {
	findings []models.Finding
	skipped  []models.Skip
	scanned  int
}

// New creates a scanner around a compiled engine
func New(engine *matcher.Engine, config Config) (*Scanner, error) {
	if config.Threads <= 0 {
		config.Threads = runtime.NumCPU()
	}
	if config.FileTimeout <= 0 {
		config.FileTimeout = DefaultFileTimeout
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	w, err := walker.New(config.Walker)
	if err != nil {
		return nil, err
	}

	return &Scanner{
		config: config,
		engine: engine,
		walker: w,
		logger: config.Logger,
	}, nil
}

// Scan walks root and matches every admitted file. When ctx is cancelled no
// further batches are dispatched, in-flight files finish, and the files that
// were walked but never scanned are recorded as cancelled skips. The only
// fatal error is an unreadable root (*walker.RootError).
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	result := &Result{
		Root:     root,
		Findings: []models.Finding{},
		Skipped:  []models.Skip{},
	}

	merged := make(chan batchResult)
	mergeDone := make(chan struct{})
	go func() {
		defer close(mergeDone)
		for br := range merged {
			result.Findings = append(result.Findings, br.findings...)
			result.Skipped = append(result.Skipped, br.skipped...)
			result.FilesScanned += br.scanned
		}
	}()

	// The pool context is never cancelled; dispatch is gated on ctx below so
	// Go always runs the task it was handed.
	g := semgroup.NewGroup(context.Background(), int64(s.config.Threads))

	var (
		batch      []walker.Entry
		walkSkips  []models.Skip
		cancelled  []models.Skip
		rootErr    error
		dispatched int
	)

	dispatch := func(entries []walker.Entry) {
		dispatched++
		g.Go(func() error {
			merged <- s.scanBatch(ctx, entries)
			return nil
		})
	}

	for entry, err := range s.walker.Walk(root) {
		if err != nil {
			var re *walker.RootError
			if errors.As(err, &re) {
				rootErr = err
				break
			}
			var we *walker.WalkError
			if errors.As(err, &we) {
				s.logger.Debug("file skipped", zap.String("path", we.Path), zap.String("reason", string(we.Reason)))
				walkSkips = append(walkSkips, we.Skip())
				continue
			}
			walkSkips = append(walkSkips, models.Skip{Path: entry.RelPath, Reason: models.SkipUnreadable, Detail: err.Error()})
			continue
		}

		if ctx.Err() != nil {
			for _, e := range append(batch, entry) {
				cancelled = append(cancelled, models.Skip{Path: e.RelPath, Reason: models.SkipCancelled})
			}
			batch = nil
			break
		}

		batch = append(batch, entry)
		if len(batch) >= s.config.BatchSize {
			dispatch(batch)
			batch = nil
		}
	}
	if len(batch) > 0 && rootErr == nil {
		dispatch(batch)
	}

	_ = g.Wait()
	close(merged)
	<-mergeDone

	if rootErr != nil {
		return nil, rootErr
	}

	result.Skipped = append(result.Skipped, walkSkips...)
	result.Skipped = append(result.Skipped, cancelled...)
	for _, sk := range result.Skipped {
		if sk.Reason == models.SkipCancelled || sk.Reason == models.SkipTimeout {
			result.Incomplete = true
			break
		}
	}
	if ctx.Err() != nil {
		result.Incomplete = true
	}

	sort.Slice(result.Findings, func(i, j int) bool { return result.Findings[i].Less(result.Findings[j]) })
	sort.SliceStable(result.Skipped, func(i, j int) bool {
		if result.Skipped[i].Path != result.Skipped[j].Path {
			return result.Skipped[i].Path < result.Skipped[j].Path
		}
		return result.Skipped[i].Reason < result.Skipped[j].Reason
	})

	s.logger.Info("scan finished",
		zap.String("root", root),
		zap.Int("batches", dispatched),
		zap.Int("files_scanned", result.FilesScanned),
		zap.Int("files_skipped", len(result.Skipped)),
		zap.Int("findings", len(result.Findings)),
		zap.Bool("incomplete", result.Incomplete),
	)
	return result, nil
}

// scanBatch scans entries in order. Once ctx is cancelled the remaining
// entries are recorded as cancelled instead of scanned.
func (s *Scanner) scanBatch(ctx context.Context, entries []walker.Entry) batchResult {
	var br batchResult
	for _, e := range entries {
		if ctx.Err() != nil {
			br.skipped = append(br.skipped, models.Skip{Path: e.RelPath, Reason: models.SkipCancelled})
			continue
		}
		findings, skip := s.scanFile(ctx, e)
		if skip != nil {
			s.logger.Debug("file skipped", zap.String("path", skip.Path), zap.String("reason", string(skip.Reason)))
			br.skipped = append(br.skipped, *skip)
			continue
		}
		br.scanned++
		br.findings = append(br.findings, findings...)
	}
	return br
}

type matchResult struct {
	findings []models.Finding
	err      error
}

// scanFile reads and matches one file within the per-file budget. The budget
// context is detached from run cancellation so an in-flight file finishes.
func (s *Scanner) scanFile(ctx context.Context, e walker.Entry) ([]models.Finding, *models.Skip) {
	content, err := os.ReadFile(e.Path)
	if err != nil {
		return nil, &models.Skip{Path: e.RelPath, Reason: models.SkipUnreadable, Detail: err.Error()}
	}
	if walker.IsBinary(content) {
		return nil, &models.Skip{Path: e.RelPath, Reason: models.SkipBinary}
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.FileTimeout)
	defer cancel()

	ch := make(chan matchResult, 1)
	go func() {
		findings, err := s.engine.MatchContext(fctx, matcher.Target{Path: e.RelPath, RepositoryID: e.RepositoryID}, content)
		ch <- matchResult{findings: findings, err: err}
	}()

	timeout := &matcher.MatchTimeoutError{Path: e.RelPath, Budget: s.config.FileTimeout}

	res, ok := awaitMatch(fctx.Done(), ch)
	if !ok {
		s.logger.Warn("file match timed out", zap.String("path", e.RelPath), zap.Duration("budget", s.config.FileTimeout))
		return nil, &models.Skip{Path: e.RelPath, Reason: models.SkipTimeout, Detail: timeout.Error()}
	}
	if res.err != nil {
		var te *matcher.MatchTimeoutError
		if errors.As(res.err, &te) {
			return nil, &models.Skip{Path: e.RelPath, Reason: models.SkipTimeout, Detail: timeout.Error()}
		}
		return nil, &models.Skip{Path: e.RelPath, Reason: models.SkipUnreadable, Detail: res.err.Error()}
	}
	return res.findings, nil
}

// awaitMatch waits for the match result or the budget. A result that is
// already available when the budget expires wins, so a file finishing at the
// deadline is never reported as timed out.
func awaitMatch(done <-chan struct{}, ch <-chan matchResult) (matchResult, bool) {
	select {
	case res := <-ch:
		return res, true
	case <-done:
		select {
		case res := <-ch:
			return res, true
		default:
			return matchResult{}, false
		}
	}
}

// ReportOptions controls how a scan result becomes a report
type ReportOptions struct {
	SampleSize int
	Seed       int64
	Rates      reporter.RateSource // optional
}

// BuildReport deduplicates, aggregates and samples the result, then
// assembles the report document
func BuildReport(result *Result, rules []models.Rule, opts ReportOptions) (*models.Report, error) {
	if result == nil {
		return nil, fmt.Errorf("no scan result")
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = aggregator.DefaultSampleSize
	}

	agg := aggregator.New(rules, aggregator.Options{SampleSize: opts.SampleSize, Seed: opts.Seed}).Aggregate(result.Findings)

	return reporter.Build(reporter.BuildInput{
		Root:         result.Root,
		Seed:         opts.Seed,
		SampleSize:   opts.SampleSize,
		Rules:        rules,
		Aggregate:    agg,
		Rates:        opts.Rates,
		FilesScanned: result.FilesScanned,
		Skipped:      result.Skipped,
		Incomplete:   result.Incomplete,
	}), nil
}
