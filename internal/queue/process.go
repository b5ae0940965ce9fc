package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/graph"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
	"github.com/OFFIS-RIT/casegraph/pkg/metrics"
)

// ErrPoisonMessage marks a payload that can never be processed. Such
// messages are dead-lettered without retries.
var ErrPoisonMessage = errors.New("poison message")

// Handler processes the body of one bus message.
type Handler func(ctx context.Context, body []byte) error

// CaseProcessor projects case records received from the bus into the graph
// and runs pattern detection on them.
type CaseProcessor struct {
	projector *graph.Projector
	detector  *graph.Detector
}

func NewCaseProcessor(projector *graph.Projector, detector *graph.Detector) *CaseProcessor {
	return &CaseProcessor{projector: projector, detector: detector}
}

// ProcessCaseMessage decodes one case record and processes it. An error is
// only returned when the payload is undecodable or the case vertex could not
// be written; failing persons, edges or pattern queries are logged.
func (p *CaseProcessor) ProcessCaseMessage(ctx context.Context, body []byte) (err error) {
	startTime := time.Now()
	defer func() {
		metrics.MessagesConsumed.WithLabelValues(metrics.Outcome(err)).Inc()
	}()

	var rec common.CaseRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return fmt.Errorf("%w: %w", ErrPoisonMessage, err)
	}
	if rec.CaseID == "" {
		return fmt.Errorf("%w: case record without caseId", ErrPoisonMessage)
	}

	proj, err := p.projector.ProjectDetailed(ctx, rec)
	if err != nil {
		return err
	}

	report := p.detector.Detect(ctx, proj.CaseKey, proj.CaseVertex)

	logger.Info("[Queue] Case processed",
		"caseId", rec.CaseID,
		"caseKey", proj.CaseKey,
		"persons", len(proj.PersonKeys),
		"failures", proj.Failures,
		"similar", len(report.SimilarCases),
		"recurring", len(report.RecurringPersons),
		"hotspots", len(report.Hotspots),
		"alert", report.Alert != nil,
		"duration", time.Since(startTime),
	)
	return nil
}

// Handler returns ProcessCaseMessage as a queue Handler.
func (p *CaseProcessor) Handler() Handler {
	return p.ProcessCaseMessage
}
