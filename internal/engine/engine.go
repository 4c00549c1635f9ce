package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/the-proof-must-flow/internal/config"
	"github.com/Veraticus/the-proof-must-flow/internal/dialect"
	"github.com/Veraticus/the-proof-must-flow/internal/location"
	"github.com/Veraticus/the-proof-must-flow/internal/model"
	"github.com/Veraticus/the-proof-must-flow/internal/preference"
)

// Evaluation is the outcome of scoring one submission. Report is nil when
// the payload could not be decoded.
type Evaluation struct {
	Report  *model.Report
	Outcome model.Outcome
}

// Engine scores submissions. It holds no per-submission state and is safe
// for concurrent use.
type Engine struct {
	deps Deps
	cfg  *config.Scoring
}

// New creates an engine with the provided dependencies and a validated config.
func New(deps Deps, cfg *config.Scoring) (*Engine, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{deps: deps, cfg: cfg}, nil
}

// EvaluateRaw detects the payload shape and scores it. Payloads matching no
// supported shape produce a format-error outcome.
func (e *Engine) EvaluateRaw(ctx context.Context, raw []byte) Evaluation {
	sub, err := dialect.Detect(raw)
	if err != nil {
		if !errors.Is(err, dialect.ErrUnknownFormat) {
			slog.Error("Unexpected error detecting submission format", "error", err)
		}
		return Evaluation{Outcome: model.FormatError(err.Error())}
	}
	return e.Evaluate(ctx, sub)
}

// Evaluate scores a decoded submission.
func (e *Engine) Evaluate(ctx context.Context, sub dialect.Submission) Evaluation {
	start := time.Now()

	var eval Evaluation
	switch sub.Kind {
	case dialect.KindPrimary, dialect.KindAlternate:
		eval = e.evaluateLocation(ctx, sub)
	case dialect.KindPreference:
		eval = e.evaluatePreference(ctx, sub)
	default:
		return Evaluation{Outcome: model.FormatError(fmt.Sprintf("unsupported submission kind %q", sub.Kind))}
	}

	slog.Info("Scored submission",
		"report_id", eval.Report.ID,
		"dialect", sub.Kind,
		"records", sub.Len(),
		"composite", eval.Report.Score,
		"outcome", eval.Outcome.Kind,
		"duration", time.Since(start))

	return eval
}

func (e *Engine) evaluateLocation(ctx context.Context, sub dialect.Submission) Evaluation {
	cfg := e.cfg.Location
	entries := sub.Entries

	var tasks []task
	for _, c := range location.Checks(cfg.Checks()) {
		tasks = append(tasks, task{
			name: c.Name,
			run:  func(context.Context) model.CheckResult { return c.Run(entries) },
		})
	}

	report := e.newReport(model.DomainLocation, sub.Kind, tasks)
	report.Checks = runChecks(ctx, tasks)
	report.Score = composite(report, cfg.Weights)

	threshold := cfg.PassThresholdFor(sub.Kind == dialect.KindAlternate)
	if report.Score < threshold {
		return Evaluation{
			Report:  report,
			Outcome: model.PolicyReject("composite %.3f is below the pass threshold %.2f", report.Score, threshold),
		}
	}

	return Evaluation{
		Report:  report,
		Outcome: model.Evaluated(location.TimeSpanScore(entries, cfg.SpanWindowDays)),
	}
}

func (e *Engine) evaluatePreference(ctx context.Context, sub dialect.Submission) Evaluation {
	cfg := e.cfg.Preference
	records := sub.Records

	var tasks []task
	for _, c := range preference.Checks(cfg.Checks(), e.deps.Reference) {
		tasks = append(tasks, task{
			name: c.Name,
			run:  func(ctx context.Context) model.CheckResult { return c.Run(ctx, records) },
		})
	}

	report := e.newReport(model.DomainPreference, sub.Kind, tasks)
	report.Checks = runChecks(ctx, tasks)
	report.Score = composite(report, cfg.Weights)

	return Evaluation{Report: report, Outcome: model.Evaluated(report.Score)}
}

func (e *Engine) newReport(domain model.Domain, kind dialect.Kind, tasks []task) *model.Report {
	order := make([]string, len(tasks))
	for i, t := range tasks {
		order[i] = t.name
	}
	return &model.Report{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now(),
		Domain:      domain,
		Dialect:     string(kind),
		Order:       order,
	}
}

// composite is the weighted sum of check scores, summed in report order so
// the result is reproducible to the last bit.
func composite(report *model.Report, weights map[string]float64) float64 {
	total := 0.0
	for _, name := range report.Order {
		total += weights[name] * report.Checks[name].Score
	}
	return total
}
