package backtest

import (
	"context"
	"errors"
	"testing"

	"backflow/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	enabled  bool
	err      error
	subjects []string
	bodies   []string
}

func (f *fakeMailer) Enabled() bool { return f.enabled }

func (f *fakeMailer) Send(subject, body string) error {
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	return f.err
}

type fakeProducer struct {
	keys [][]byte
	msgs []any
}

func (f *fakeProducer) Produce(_ context.Context, key []byte, msg any) error {
	f.keys = append(f.keys, key)
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeProducer) Close() {}

func sampleSummary() *model.RunSummary {
	return &model.RunSummary{
		RunID:        "42",
		RunDate:      d0,
		StrategyType: "swing",
		V1:           model.VariantResult{Version: "v1", Metrics: model.StrategyMetrics{TotalTrades: 10}},
		V2:           model.VariantResult{Version: "v2", Metrics: model.StrategyMetrics{TotalTrades: 14}},
		Comparison: model.ComparisonResult{
			StrategyType:   "swing",
			Recommendation: model.UseV2,
			Confidence:     model.ConfidenceHigh,
			CriteriaMet:    4,
		},
		Skipped: map[string]string{"XYZ.AX": "not enough bars"},
		Failed:  map[string]string{},
	}
}

func TestMailNotifier(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		m := &fakeMailer{}
		require.NoError(t, NewMailNotifier(m).Notify(context.Background(), sampleSummary()))
		assert.Empty(t, m.subjects)
	})

	t.Run("sends report", func(t *testing.T) {
		m := &fakeMailer{enabled: true}
		require.NoError(t, NewMailNotifier(m).Notify(context.Background(), sampleSummary()))
		require.Len(t, m.subjects, 1)
		assert.Equal(t, "[backflow] swing 2024-05-01: use_v2 (high)", m.subjects[0])
		assert.Contains(t, m.bodies[0], "use_v2")
	})

	t.Run("send error", func(t *testing.T) {
		m := &fakeMailer{enabled: true, err: errors.New("smtp down")}
		assert.EqualError(t, NewMailNotifier(m).Notify(context.Background(), sampleSummary()), "smtp down")
	})
}

type fakeMessenger struct {
	enabled bool
	err     error
	titles  []string
	bodies  []string
}

func (f *fakeMessenger) Enabled() bool { return f.enabled }

func (f *fakeMessenger) Send(_ context.Context, title, body string) error {
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, body)
	return f.err
}

func TestChatNotifier(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		m := &fakeMessenger{}
		require.NoError(t, NewChatNotifier(m).Notify(context.Background(), sampleSummary()))
		assert.Empty(t, m.titles)
	})

	t.Run("sends report", func(t *testing.T) {
		m := &fakeMessenger{enabled: true}
		require.NoError(t, NewChatNotifier(m).Notify(context.Background(), sampleSummary()))
		require.Len(t, m.titles, 1)
		assert.Equal(t, "[backflow] swing 2024-05-01: use_v2 (high)", m.titles[0])
		assert.Equal(t, RenderText(sampleSummary()), m.bodies[0])
	})

	t.Run("send error", func(t *testing.T) {
		m := &fakeMessenger{enabled: true, err: errors.New("chat not found")}
		assert.EqualError(t, NewChatNotifier(m).Notify(context.Background(), sampleSummary()), "chat not found")
	})
}

func TestKafkaPublisher(t *testing.T) {
	p := &fakeProducer{}
	require.NoError(t, NewKafkaPublisher(p).Publish(context.Background(), sampleSummary()))

	require.Len(t, p.msgs, 1)
	assert.Equal(t, []byte("swing"), p.keys[0])
	ev, ok := p.msgs[0].(model.RunEvent)
	require.True(t, ok)
	assert.Equal(t, "42", ev.RunID)
	assert.Equal(t, 1, ev.Skipped)
	assert.Equal(t, 14, ev.V2.TotalTrades)
	assert.Equal(t, model.UseV2, ev.Comparison.Recommendation)
}
