// Package workflow drives a quiz chain: render a page, work out an answer,
// submit it and follow the next URL until a termination condition holds.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/quizchain/internal/extract"
	"github.com/JakeFAU/quizchain/internal/logging"
	"github.com/JakeFAU/quizchain/internal/metrics"
	"github.com/JakeFAU/quizchain/internal/parser"
	"github.com/JakeFAU/quizchain/internal/progress"
	"github.com/JakeFAU/quizchain/internal/quiz"
	"github.com/JakeFAU/quizchain/internal/telemetry"
)

// Config bounds a run.
type Config struct {
	TimeBudget      time.Duration
	MaxSteps        int
	DownloadTimeout time.Duration
}

// Orchestrator executes workflow runs. It holds no per-run state, so one
// instance serves concurrent requests.
type Orchestrator struct {
	cfg        Config
	renderer   quiz.Renderer
	downloader quiz.Downloader
	summer     quiz.ColumnSummer
	submitter  quiz.Submitter
	clock      quiz.Clock
	ids        quiz.IDGenerator
	progress   progress.Emitter
	tracer     trace.Tracer
	logger     *zap.Logger
}

// New constructs an Orchestrator. A nil emitter discards progress events.
func New(
	cfg Config,
	renderer quiz.Renderer,
	downloader quiz.Downloader,
	summer quiz.ColumnSummer,
	submitter quiz.Submitter,
	clock quiz.Clock,
	ids quiz.IDGenerator,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Orchestrator {
	if emitter == nil {
		emitter = progress.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		renderer:   renderer,
		downloader: downloader,
		summer:     summer,
		submitter:  submitter,
		clock:      clock,
		ids:        ids,
		progress:   emitter,
		tracer:     telemetry.Tracer(),
		logger:     logger,
	}
}

// RunWithin runs the workflow under a hard deadline. If limit elapses before
// the run finishes on its own, quiz.ErrOverallTimeout is returned and the
// partial result is discarded.
func (o *Orchestrator) RunWithin(ctx context.Context, req quiz.WorkflowRequest, limit time.Duration) (quiz.WorkflowResult, error) {
	if limit <= 0 {
		return o.Run(ctx, req), nil
	}
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan quiz.WorkflowResult, 1)
	go func() {
		done <- o.Run(ctx, req)
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return quiz.WorkflowResult{}, fmt.Errorf("%w: %w", quiz.ErrOverallTimeout, ctx.Err())
	}
}

// Run executes steps sequentially until a termination condition holds. It
// never fails: step failures are recorded in the trace and end the run with
// the matching termination reason.
func (o *Orchestrator) Run(ctx context.Context, req quiz.WorkflowRequest) quiz.WorkflowResult {
	start := o.clock.Now()
	runID, err := o.ids.NewID()
	if err != nil {
		runID = fmt.Sprintf("run-%d", start.UnixNano())
		o.logger.Warn("run id generation failed, using timestamp", zap.Error(err))
	}
	logger := o.logger.With(zap.String("run_id", runID))

	ctx, span := o.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("quiz.run_id", runID),
		attribute.String("quiz.start_url", req.StartURL),
	))
	defer span.End()

	metrics.IncActiveRuns()
	defer metrics.DecActiveRuns()

	logger.Info("run started",
		zap.String("start_url", req.StartURL),
		zap.String("email", req.Email),
		logging.Secret("secret", req.Secret),
	)
	o.emit(progress.Event{RunID: runID, TS: start, Stage: progress.StageRunStart, URL: req.StartURL})

	result := quiz.WorkflowResult{RunID: runID, Steps: []quiz.StepRecord{}}
	current := req.StartURL
	for {
		if reason, stop := o.shouldStop(current, start, len(result.Steps)); stop {
			result.TerminationReason = reason
			break
		}
		rec, next, reason := o.step(ctx, logger, runID, req, len(result.Steps)+1, current)
		result.Steps = append(result.Steps, rec)
		if !rec.AnswerCandidate.IsZero() {
			result.FinalAnswer = rec.AnswerCandidate
		}
		if reason != "" {
			result.TerminationReason = reason
			break
		}
		current = next
	}

	elapsed := o.clock.Now().Sub(start)
	result.ElapsedSeconds = elapsed.Seconds()

	span.SetAttributes(
		attribute.Int("quiz.steps", len(result.Steps)),
		attribute.String("quiz.termination_reason", string(result.TerminationReason)),
	)
	logger.Info("run finished",
		zap.String("reason", string(result.TerminationReason)),
		zap.Int("steps", len(result.Steps)),
		zap.Stringer("answer", result.FinalAnswer),
		zap.Duration("elapsed", elapsed),
	)
	o.emit(progress.Event{
		RunID:  runID,
		TS:     o.clock.Now(),
		Stage:  progress.StageRunDone,
		URL:    req.StartURL,
		Step:   len(result.Steps),
		Reason: string(result.TerminationReason),
		Dur:    elapsed,
	})
	return result
}

// shouldStop evaluates the loop guard before an iteration. Time is checked
// before the step ceiling.
func (o *Orchestrator) shouldStop(current string, start time.Time, steps int) (quiz.TerminationReason, bool) {
	switch {
	case current == "":
		return quiz.ReasonNoNextURL, true
	case o.clock.Now().Sub(start) >= o.cfg.TimeBudget:
		return quiz.ReasonTimeBudgetExceeded, true
	case steps >= o.cfg.MaxSteps:
		return quiz.ReasonStepLimitReached, true
	default:
		return "", false
	}
}

// step runs one Fetching → Extracting → Answering → Submitting pass. It
// returns the record, the next URL and, when the chain must end here, the
// termination reason.
func (o *Orchestrator) step(
	ctx context.Context,
	logger *zap.Logger,
	runID string,
	req quiz.WorkflowRequest,
	index int,
	pageURL string,
) (quiz.StepRecord, string, quiz.TerminationReason) {
	stepStart := o.clock.Now()
	ctx, span := o.tracer.Start(ctx, "workflow.step", trace.WithAttributes(
		attribute.Int("quiz.step", index),
		attribute.String("quiz.url", pageURL),
	))
	defer span.End()

	rec := quiz.StepRecord{Index: index, URL: pageURL}
	next, reason, outcome := o.execute(ctx, logger, req, &rec)
	rec.DurationMs = o.clock.Now().Sub(stepStart).Milliseconds()

	if rec.Error != nil {
		span.SetStatus(codes.Error, string(rec.Error.Kind))
	}
	logger.Info("step finished",
		zap.Int("step", index),
		zap.String("url", pageURL),
		zap.String("outcome", string(outcome)),
		zap.String("submit_url", rec.SubmitURL),
		zap.String("file_link", rec.FileLink),
		zap.Stringer("answer", rec.AnswerCandidate),
		zap.Int("status", rec.SubmitStatusCode),
	)
	evt := progress.Event{
		RunID:      runID,
		TS:         o.clock.Now(),
		Stage:      progress.StageStepDone,
		Step:       index,
		URL:        pageURL,
		Outcome:    outcome,
		StatusCode: rec.SubmitStatusCode,
		Dur:        time.Duration(rec.DurationMs) * time.Millisecond,
	}
	if rec.SubmitResponse != nil {
		evt.Correct = rec.SubmitResponse.Correct
	}
	if rec.Error != nil {
		evt.Note = rec.Error.Message
	}
	o.emit(evt)
	return rec, next, reason
}

func (o *Orchestrator) execute(
	ctx context.Context,
	logger *zap.Logger,
	req quiz.WorkflowRequest,
	rec *quiz.StepRecord,
) (string, quiz.TerminationReason, progress.StepOutcome) {
	page, err := o.renderer.Render(ctx, rec.URL)
	if err != nil {
		rec.Error = o.stepError(err, req.Secret)
		return "", quiz.ReasonFetchFailed, progress.OutcomeFetchFailed
	}
	rec.FetchSucceeded = true

	text := page.Text
	if strings.TrimSpace(text) == "" {
		text = page.HTML
	}
	base := page.FinalURL
	if base == "" {
		base = rec.URL
	}
	links := extract.Extract(page.HTML, text, base)
	rec.SubmitURL = links.SubmitURL
	rec.FileLink = links.FileLink
	logger.Debug("links extracted",
		zap.String("submit_rule", links.SubmitRule),
		zap.String("file_rule", links.FileRule),
	)

	rec.AnswerCandidate = o.answer(ctx, logger, rec, text)

	if rec.SubmitURL == "" {
		return "", quiz.ReasonNoSubmitEndpoint, progress.OutcomeNoSubmit
	}

	out, err := o.submitter.Submit(ctx, rec.SubmitURL, quiz.SubmissionPayload{
		Email:  req.Email,
		Secret: req.Secret,
		URL:    rec.URL,
		Answer: rec.AnswerCandidate,
	})
	rec.SubmitStatusCode = out.StatusCode
	rec.SubmitResponseExcerpt = out.Excerpt
	rec.SubmitResponse = out.Response
	if err != nil {
		rec.Error = o.stepError(err, req.Secret)
		var sizeErr *quiz.PayloadTooLargeError
		if errors.As(err, &sizeErr) {
			return "", quiz.ReasonPayloadTooLarge, progress.OutcomeTooLarge
		}
		return "", quiz.ReasonNoNextURL, progress.OutcomeSubmitError
	}
	if out.Response == nil || out.Response.URL == "" {
		return "", quiz.ReasonNoNextURL, progress.OutcomeSubmitted
	}
	return extract.Resolve(rec.SubmitURL, out.Response.URL), "", progress.OutcomeSubmitted
}

// answer applies the precedence chain: parsed file, inline number, inline
// quoted string, then the sentinel.
func (o *Orchestrator) answer(ctx context.Context, logger *zap.Logger, rec *quiz.StepRecord, text string) quiz.Answer {
	if rec.FileLink != "" {
		if v, ok := o.fileAnswer(ctx, rec); ok {
			return quiz.NumberAnswer(v)
		}
		logger.Debug("file did not yield an answer",
			zap.String("file_link", rec.FileLink),
			zap.String("file_error", rec.FileError),
		)
	}
	if a, _, ok := extract.InlineAnswer(text); ok {
		return a
	}
	return quiz.SentinelAnswer()
}

func (o *Orchestrator) fileAnswer(ctx context.Context, rec *quiz.StepRecord) (float64, bool) {
	kind := parser.KindForLink(rec.FileLink)
	if kind == quiz.FileKindUnknown {
		rec.FileError = "unsupported file type"
		return 0, false
	}
	dctx := ctx
	if o.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, o.cfg.DownloadTimeout)
		defer cancel()
	}
	data, err := o.downloader.Download(dctx, rec.FileLink)
	if err != nil {
		rec.FileError = err.Error()
		return 0, false
	}
	v, ok := o.summer.Sum(kind, data)
	rec.FileParsed = ok
	return v, ok
}

// stepError converts err to its trace form with the secret scrubbed.
func (o *Orchestrator) stepError(err error, secret string) *quiz.StepError {
	se := quiz.NewStepError(err)
	se.Message = logging.Scrub(se.Message, secret)
	return se
}

func (o *Orchestrator) emit(evt progress.Event) {
	o.progress.Emit(evt)
}
