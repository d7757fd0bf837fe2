package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return p.err
}

func sample() GenerationMetrics {
	rate := 0.8
	return GenerationMetrics{
		GenerationID:       "gen-42",
		StartedAt:          time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		FinishedAt:         time.Date(2026, 4, 1, 9, 0, 30, 0, time.UTC),
		Total:              30 * time.Second,
		Steps:              []StepTiming{{Name: "outline", Duration: 5 * time.Second}},
		ValidationPassRate: &rate,
		Destination:        "Kyoto",
		Days:               3,
		Strategy:           "single",
		Success:            true,
	}
}

func TestNATSStore_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	s := NewNATSStore(pub, "")

	require.NoError(t, s.Insert(t.Context(), sample()))
	assert.Equal(t, DefaultSubject, pub.subject)

	var got GenerationMetrics
	require.NoError(t, json.Unmarshal(pub.data, &got))
	assert.Equal(t, "gen-42", got.GenerationID)
	assert.Equal(t, 30*time.Second, got.Total)
	assert.NoError(t, s.Close())
}

func TestNATSStore_Errors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("no responders")}
	s := NewNATSStore(pub, "custom.subject")
	err := s.Insert(t.Context(), sample())
	assert.ErrorContains(t, err, "custom.subject")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Insert(ctx, sample()), context.Canceled)
}

func TestSQLiteStore_Insert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")
	s, err := OpenSQLite(t.Context(), path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Insert(t.Context(), sample()))
	require.NoError(t, s.Insert(t.Context(), sample()))

	other := sample()
	other.GenerationID = "gen-43"
	other.ValidationPassRate = nil
	other.Steps = nil
	require.NoError(t, s.Insert(t.Context(), other))

	n, err := s.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLogStore_Insert(t *testing.T) {
	s := NewLogStore(quietLogger())
	assert.NoError(t, s.Insert(t.Context(), sample()))
	assert.NoError(t, s.Close())
}
