// Package pipeline runs case records through the validate, enrich and
// publish stages before they are handed to the message bus.
//
// A Pipeline is built once and shared by every request. Stages hold only
// configuration, each call works on its own copy of the record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
	"github.com/OFFIS-RIT/casegraph/pkg/metrics"
)

// ErrMissingField is returned by the validate stage when a required field
// of the case record is empty.
var ErrMissingField = errors.New("missing required field")

// Stage is a single step of the pipeline. Process may modify rec.
type Stage interface {
	Name() string
	Process(ctx context.Context, rec *common.CaseRecord) error
}

// StageError reports which stage failed for which case.
type StageError struct {
	Stage  string
	CaseID string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed for case %q: %v", e.Stage, e.CaseID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline runs its stages in order and stops at the first failure.
type Pipeline struct {
	stages []Stage
}

// NewPipeline creates a pipeline from the given stages. Nil stages are
// ignored.
func NewPipeline(stages ...Stage) *Pipeline {
	p := &Pipeline{}
	for _, s := range stages {
		if s != nil {
			p.stages = append(p.stages, s)
		}
	}
	return p
}

// Stages returns the names of the configured stages in order.
func (p *Pipeline) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}

// Run processes a copy of rec and returns the resulting record. On failure
// the returned error is a *StageError.
func (p *Pipeline) Run(ctx context.Context, rec common.CaseRecord) (common.CaseRecord, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	out := rec.Clone()
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return out, p.fail(stage.Name(), out.CaseID, err)
		}
		if err := stage.Process(ctx, &out); err != nil {
			return out, p.fail(stage.Name(), out.CaseID, err)
		}
	}

	metrics.PipelineResults.WithLabelValues(metrics.OutcomeOK).Inc()
	logger.Debug("[Pipeline] Case accepted", "caseId", out.CaseID)
	return out, nil
}

func (p *Pipeline) fail(stage, caseID string, err error) error {
	metrics.PipelineResults.WithLabelValues(metrics.OutcomeFailed).Inc()
	metrics.PipelineFailures.WithLabelValues(stage).Inc()
	logger.Error("[Pipeline] Stage failed", "stage", stage, "caseId", caseID, "err", err)
	return &StageError{Stage: stage, CaseID: caseID, Err: err}
}

// Failure pairs a record position with its error.
type Failure struct {
	Index  int
	CaseID string
	Err    error
}

// Result summarizes a RunAll call.
type Result struct {
	Accepted []common.CaseRecord
	Failures []Failure
}

// AcceptedCount returns the number of records that passed every stage.
func (r Result) AcceptedCount() int {
	return len(r.Accepted)
}

// FailedCount returns the number of records that failed a stage.
func (r Result) FailedCount() int {
	return len(r.Failures)
}

// RunAll runs every record independently. A failing record is reported in
// the result and never stops the remaining ones.
func (p *Pipeline) RunAll(ctx context.Context, recs []common.CaseRecord) Result {
	var res Result
	for i, rec := range recs {
		out, err := p.Run(ctx, rec)
		if err != nil {
			res.Failures = append(res.Failures, Failure{Index: i, CaseID: rec.CaseID, Err: err})
			continue
		}
		res.Accepted = append(res.Accepted, out)
	}
	return res
}
