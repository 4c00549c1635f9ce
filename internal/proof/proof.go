// Package proof turns a scored submission into the response handed to the
// incentive system.
package proof

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Veraticus/the-proof-must-flow/internal/common"
	"github.com/Veraticus/the-proof-must-flow/internal/config"
	"github.com/Veraticus/the-proof-must-flow/internal/dialect"
	"github.com/Veraticus/the-proof-must-flow/internal/engine"
	"github.com/Veraticus/the-proof-must-flow/internal/ledger"
	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// UniquenessLedger scores a digest and records it.
type UniquenessLedger interface {
	Check(ctx context.Context, digest string) float64
}

// Result pairs the response with the evaluation behind it. Evaluation.Report
// is nil when the submission was rejected before scoring.
type Result struct {
	Response   *model.ProofResponse
	Evaluation engine.Evaluation
}

// Generator produces proof responses.
type Generator struct {
	engine *engine.Engine
	ledger UniquenessLedger
	cfg    *config.Scoring
}

// NewGenerator creates a generator.
func NewGenerator(eng *engine.Engine, led UniquenessLedger, cfg *config.Scoring) (*Generator, error) {
	if eng == nil {
		return nil, fmt.Errorf("%w: engine is required", common.ErrMissingConfig)
	}
	if led == nil {
		return nil, fmt.Errorf("%w: uniqueness ledger is required", common.ErrMissingConfig)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Generator{engine: eng, ledger: led, cfg: cfg}, nil
}

// Generate scores raw and builds the response. Only an empty payload is an
// error; every other failure is reported through an invalid response.
func (g *Generator) Generate(ctx context.Context, raw []byte) (*Result, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, common.ErrNoInput
	}

	resp := model.NewProofResponse(g.cfg.Proof.DLPID)

	sub, err := dialect.Detect(raw)
	if err != nil {
		eval := engine.Evaluation{Outcome: model.FormatError(err.Error())}
		g.reject(resp, eval.Outcome)
		return &Result{Response: resp, Evaluation: eval}, nil
	}

	if n := sub.Len(); n > g.cfg.Proof.MaxRecords {
		outcome := model.PolicyReject("%d records exceeds the limit of %d", n, g.cfg.Proof.MaxRecords)
		slog.Warn("Submission too large, skipping scoring", "records", n, "limit", g.cfg.Proof.MaxRecords)
		g.reject(resp, outcome)
		resp.Attributes["domain"] = string(sub.Domain())
		resp.Attributes["dialect"] = string(sub.Kind)
		resp.Attributes["record_count"] = n
		return &Result{Response: resp, Evaluation: engine.Evaluation{Outcome: outcome}}, nil
	}

	eval := g.engine.Evaluate(ctx, sub)
	resp.Quality = eval.Outcome.Legacy()
	g.describe(resp, sub, eval)

	if !eval.Outcome.IsEvaluated() {
		resp.Valid = false
		resp.Score = 0
		return &Result{Response: resp, Evaluation: eval}, nil
	}

	resp.Uniqueness = g.uniqueness(ctx, sub.Raw)

	switch sub.Domain() {
	case model.DomainPreference:
		quality := eval.Outcome.Score
		volume := math.Min(1, float64(sub.Len())/g.cfg.Preference.ScoreVolume)
		resp.Valid = quality > g.cfg.Preference.MinQuality
		resp.Score = quality * volume
	default:
		resp.Valid = true
		resp.Score = eval.Outcome.Score
	}

	slog.Info("Generated proof",
		"report_id", eval.Report.ID,
		"valid", resp.Valid,
		"score", resp.Score,
		"uniqueness", resp.Uniqueness)

	return &Result{Response: resp, Evaluation: eval}, nil
}

func (g *Generator) uniqueness(ctx context.Context, raw []byte) float64 {
	digest, err := ledger.Hash(raw)
	if err != nil {
		common.LogError(err, "Failed to hash submission, scoring as duplicate", nil)
		return 0
	}
	return g.ledger.Check(ctx, digest)
}

func (g *Generator) reject(resp *model.ProofResponse, outcome model.Outcome) {
	resp.Valid = false
	resp.Score = 0
	resp.Quality = outcome.Legacy()
	resp.Attributes["total_score"] = outcome.Legacy()
	resp.Attributes["outcome"] = string(outcome.Kind)
	resp.Attributes["reason"] = outcome.Reason
}

func (g *Generator) describe(resp *model.ProofResponse, sub dialect.Submission, eval engine.Evaluation) {
	attrs := resp.Attributes
	attrs["total_score"] = eval.Outcome.Legacy()
	attrs["outcome"] = string(eval.Outcome.Kind)
	if eval.Outcome.Reason != "" {
		attrs["reason"] = eval.Outcome.Reason
	}
	attrs["domain"] = string(sub.Domain())
	attrs["dialect"] = string(sub.Kind)
	attrs["record_count"] = sub.Len()

	if sub.Domain() == model.DomainPreference {
		attrs["score_threshold"] = g.cfg.Preference.MinQuality
	} else {
		attrs["score_threshold"] = g.cfg.Location.PassThresholdFor(sub.Kind == dialect.KindAlternate)
	}

	if eval.Report == nil {
		return
	}
	attrs["report_id"] = eval.Report.ID
	attrs["composite"] = eval.Report.Score
	for _, name := range eval.Report.Order {
		attrs[name] = eval.Report.Checks[name].Score
	}
}
