package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
	"github.com/OFFIS-RIT/casegraph/pkg/metrics"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
)

// DefaultHotspotMinCases is the exclusive lower bound of cases for a
// district to count as a hotspot.
const DefaultHotspotMinCases = 5

// Names of the correlation queries, used as keys in Report.Errors.
const (
	QuerySimilarCases     = "similar_cases"
	QueryRecurringPersons = "recurring_persons"
	QueryLocationHotspots = "location_hotspots"
)

// HighPriorityCaseTypes raise an alert when a case of that type is processed.
var HighPriorityCaseTypes = []string{"ASSAULT", "ROBBERY", "HOMICIDE"}

// Alert is a high priority signal for a single case.
type Alert struct {
	CaseKey  string    `json:"caseKey"`
	CaseID   string    `json:"caseId"`
	CaseType string    `json:"caseType"`
	RaisedAt time.Time `json:"raisedAt"`
}

// AlertSink receives alerts raised by the Detector.
type AlertSink interface {
	Alert(ctx context.Context, alert Alert) error
}

// LogAlertSink writes alerts to the log at WARN level.
type LogAlertSink struct{}

func (LogAlertSink) Alert(ctx context.Context, alert Alert) error {
	logger.Warn("[Patterns] HIGH PRIORITY ALERT",
		"caseType", alert.CaseType,
		"caseId", alert.CaseID,
		"key", alert.CaseKey,
	)
	return nil
}

// Report collects the results of one detection pass. A query that failed
// has an entry in Errors and an empty result.
type Report struct {
	CaseKey          string
	CaseID           string
	SimilarCases     []map[string]any
	RecurringPersons []common.RecurringPerson
	Hotspots         []common.Hotspot
	Alert            *Alert
	Errors           map[string]error
}

// Detector runs the correlation queries for processed cases.
type Detector struct {
	client       *GraphClient
	sink         AlertSink
	minCases     int
	highPriority map[string]bool
	now          func() time.Time
}

type DetectorOption func(*Detector)

// WithAlertSink replaces the default LogAlertSink.
func WithAlertSink(sink AlertSink) DetectorOption {
	return func(d *Detector) {
		d.sink = sink
	}
}

// WithHotspotMinCases changes the hotspot threshold.
func WithHotspotMinCases(n int) DetectorOption {
	return func(d *Detector) {
		d.minCases = n
	}
}

// WithDetectorClock sets the clock used for alert timestamps.
func WithDetectorClock(now func() time.Time) DetectorOption {
	return func(d *Detector) {
		d.now = now
	}
}

func NewDetector(client *GraphClient, opts ...DetectorOption) *Detector {
	d := &Detector{
		client:       client,
		sink:         LogAlertSink{},
		minCases:     DefaultHotspotMinCases,
		highPriority: make(map[string]bool, len(HighPriorityCaseTypes)),
		now:          time.Now,
	}
	for _, t := range HighPriorityCaseTypes {
		d.highPriority[t] = true
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(d)
	}
	return d
}

// IsHighPriority reports whether caseType raises an alert. The match is
// exact and case sensitive.
func (d *Detector) IsHighPriority(caseType string) bool {
	return d.highPriority[caseType]
}

// Detect runs all correlation queries for the case vertex stored under
// caseKey. The queries run concurrently; a failing query is logged and
// recorded in the report, it never stops the others.
func (d *Detector) Detect(ctx context.Context, caseKey string, vertex common.CaseVertex) Report {
	report := Report{
		CaseKey: caseKey,
		CaseID:  vertex.CaseID,
		Errors:  map[string]error{},
	}
	var mu sync.Mutex

	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Errors[name] = fmt.Errorf("%w: %s: %w", store.ErrGraphQuery, name, err)
	}

	var g errgroup.Group
	g.Go(func() error {
		cctx, cancel := d.client.call(ctx)
		defer cancel()
		docs, err := d.client.storage.SimilarCases(cctx, vertex.CaseType, vertex.CaseID)
		if err != nil {
			record(QuerySimilarCases, err)
			return nil
		}
		mu.Lock()
		report.SimilarCases = docs
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		cctx, cancel := d.client.call(ctx)
		defer cancel()
		persons, err := d.client.storage.RecurringPersons(cctx, caseKey)
		if err != nil {
			record(QueryRecurringPersons, err)
			return nil
		}
		mu.Lock()
		report.RecurringPersons = persons
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		cctx, cancel := d.client.call(ctx)
		defer cancel()
		spots, err := d.client.storage.LocationHotspots(cctx, d.minCases)
		if err != nil {
			record(QueryLocationHotspots, err)
			return nil
		}
		mu.Lock()
		report.Hotspots = spots
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	for name, err := range report.Errors {
		metrics.PatternQueryFailures.WithLabelValues(name).Inc()
		logger.Error("[Patterns] Query failed", "query", name, "caseId", vertex.CaseID, "err", err)
	}

	if d.IsHighPriority(vertex.CaseType) {
		alert := Alert{
			CaseKey:  caseKey,
			CaseID:   vertex.CaseID,
			CaseType: vertex.CaseType,
			RaisedAt: d.now().UTC(),
		}
		report.Alert = &alert
		metrics.Alerts.WithLabelValues(vertex.CaseType).Inc()
		if err := d.sink.Alert(ctx, alert); err != nil {
			logger.Error("[Patterns] Failed to deliver alert", "caseId", vertex.CaseID, "err", err)
		}
	}

	logger.Info("[Patterns] Detection completed",
		"caseId", vertex.CaseID,
		"similar", len(report.SimilarCases),
		"recurring", len(report.RecurringPersons),
		"hotspots", len(report.Hotspots),
		"failed", len(report.Errors),
	)
	return report
}
