package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/graph"
	"github.com/OFFIS-RIT/casegraph/pkg/pipeline"
	"github.com/OFFIS-RIT/casegraph/pkg/store/memory"
)

type collectingSink struct {
	alerts []graph.Alert
}

func (s *collectingSink) Alert(ctx context.Context, alert graph.Alert) error {
	s.alerts = append(s.alerts, alert)
	return nil
}

func newTestProcessor(t *testing.T) (*CaseProcessor, *memory.GraphMemStorage, *collectingSink) {
	t.Helper()
	mem := memory.NewGraphMemStorage()
	client, err := graph.NewGraphClient(graph.NewGraphClientParams{Storage: mem})
	require.NoError(t, err)
	sink := &collectingSink{}
	return NewCaseProcessor(
		graph.NewProjector(client),
		graph.NewDetector(client, graph.WithAlertSink(sink)),
	), mem, sink
}

func TestProcessCaseMessage(t *testing.T) {
	p, mem, sink := newTestProcessor(t)

	body, err := json.Marshal(common.CaseRecord{
		CaseID:   "C-1",
		CaseType: "ROBBERY",
		Status:   "OPEN",
		InvolvedPersons: []common.Person{
			{FirstName: "Ann", LastName: "Lee", Role: "VICTIM"},
		},
		Location: &common.Location{City: "Springfield", District: "North"},
	})
	require.NoError(t, err)

	require.NoError(t, p.Handler()(context.Background(), body))

	assert.Len(t, mem.Documents(common.CollectionCases), 1)
	assert.Len(t, mem.Documents(common.CollectionPersons), 1)
	assert.Len(t, mem.Documents(common.CollectionLocations), 1)
	require.Len(t, sink.alerts, 1)
	assert.Equal(t, "C-1", sink.alerts[0].CaseID)
}

type capturingPublisher struct {
	bodies [][]byte
}

func (p *capturingPublisher) Publish(ctx context.Context, topic string, body []byte) error {
	p.bodies = append(p.bodies, body)
	return nil
}

func TestSubmittedCasesRaiseAlertsByType(t *testing.T) {
	pub := &capturingPublisher{}
	pl := pipeline.NewDefaultPipeline(pipeline.NewDefaultPipelineParams{
		Publisher: pub,
		Topic:     "case-events",
	})
	p, mem, sink := newTestProcessor(t)
	ctx := context.Background()

	_, err := pl.Run(ctx, common.CaseRecord{CaseType: "HOMICIDE", Status: "OPEN"})
	require.NoError(t, err)
	_, err = pl.Run(ctx, common.CaseRecord{CaseType: "THEFT", Status: "OPEN"})
	require.NoError(t, err)
	require.Len(t, pub.bodies, 2)

	require.NoError(t, p.Handler()(ctx, pub.bodies[0]))
	require.Len(t, sink.alerts, 1)
	assert.Equal(t, "HOMICIDE", sink.alerts[0].CaseType)
	assert.NotEmpty(t, sink.alerts[0].CaseID)

	require.NoError(t, p.Handler()(ctx, pub.bodies[1]))
	assert.Len(t, sink.alerts, 1)
	assert.Len(t, mem.Documents(common.CollectionCases), 2)
}

func TestProcessCaseMessagePoison(t *testing.T) {
	p, mem, _ := newTestProcessor(t)

	err := p.ProcessCaseMessage(context.Background(), []byte("not json"))
	assert.ErrorIs(t, err, ErrPoisonMessage)

	err = p.ProcessCaseMessage(context.Background(), []byte(`{"caseType":"THEFT"}`))
	assert.ErrorIs(t, err, ErrPoisonMessage)

	assert.Empty(t, mem.Documents(common.CollectionCases))
}

func TestProcessCaseMessageStoreFailureIsRetryable(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.ProcessCaseMessage(ctx, []byte(`{"caseId":"C-1","caseType":"THEFT","status":"OPEN"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPoisonMessage)
	assert.Equal(t, dispositionRetry, decide(err, 0))
}
