package engine

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
	"github.com/c360studio/tripgen/llm/testutil"
	"github.com/c360studio/tripgen/metrics"
)

func kansaiItinerary() *itinerary.Itinerary {
	return &itinerary.Itinerary{
		ID:          "it-kansai",
		Destination: "Kyoto → Osaka",
		Description: "Temples then food",
		Model:       "gemini-pro",
		Strategy:    "race",
		HeroImage:   &itinerary.Image{URL: "https://img.example/kyoto.jpg"},
		References:  []itinerary.Reference{{Title: "Kyoto guide"}},
		Days: []itinerary.DayPlan{
			{Day: 1, Title: "Kyoto", Activities: []itinerary.Activity{{Time: "09:00", Name: "Kiyomizu-dera"}}},
			{
				Day:        2,
				Title:      "Osaka",
				Activities: []itinerary.Activity{{Time: "10:00", Name: "Dotonbori"}},
				Transit: &itinerary.Transit{
					Mode:   itinerary.ModeTrain,
					Memo:   "JR Special Rapid",
					Origin: itinerary.TransitFromUser,
				},
			},
		},
	}
}

func chat(messages ...string) []itinerary.ChatMessage {
	out := make([]itinerary.ChatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, itinerary.ChatMessage{Role: "user", Content: m})
	}
	return out
}

func TestRegenerateItinerary_Success(t *testing.T) {
	mock := testutil.NewMockCompleter().On("gemini", testutil.Reply(`{
  "destination": "Kyoto → Osaka",
  "description": "Slower mornings",
  "days": [
    {"day": 1, "title": "Kyoto", "activities": [{"time": "10:30", "name": "Kiyomizu-dera"}]},
    {"day": 2, "title": "Osaka", "activities": [{"time": "11:00", "name": "Dotonbori"}],
     "transit": {"mode": "bus", "memo": "Highway bus"}}
  ]
}`))
	e := newEngine(testRegistry("gemini"), mock)
	current := kansaiItinerary()

	res := e.RegenerateItinerary(t.Context(), current, chat("start later each day"))

	require.True(t, res.Success, res.Error)
	out := res.Itinerary
	assert.Equal(t, "it-kansai", out.ID)
	assert.Equal(t, "Slower mornings", out.Description)
	assert.Equal(t, "gemini-flash", out.Model, "refinement runs on the standard tier")
	require.NotNil(t, out.HeroImage)
	assert.Equal(t, current.HeroImage.URL, out.HeroImage.URL)
	assert.Len(t, out.References, 1)

	require.Len(t, out.Days, 2)
	assert.Equal(t, "10:30", out.Days[0].Activities[0].Time)
	require.NotNil(t, out.Days[1].Transit)
	assert.Equal(t, itinerary.ModeTrain, out.Days[1].Transit.Mode)
	assert.Equal(t, "JR Special Rapid", out.Days[1].Transit.Memo)
	assert.Equal(t, itinerary.TransitFromUser, out.Days[1].Transit.Origin)

	assert.Equal(t, 1, mock.CallCount("gemini"))
	assert.Equal(t, "gemini-pro", current.Model, "input is not mutated")
}

func TestRegenerateItinerary_ProviderFailure(t *testing.T) {
	mock := testutil.NewMockCompleter().On("gemini", testutil.Fail(llm.NewFatalError(errors.New("quota exceeded"))))
	e := newEngine(testRegistry("gemini"), mock)

	res := e.RegenerateItinerary(t.Context(), kansaiItinerary(), chat("add a museum"))

	assert.False(t, res.Success)
	assert.Nil(t, res.Itinerary)
	assert.Contains(t, res.Error, "modify")
	assert.Contains(t, res.Error, "quota exceeded")
	assert.True(t, llm.IsFatal(res.Err()))
}

func TestRegenerateItinerary_RejectsDayGaps(t *testing.T) {
	mock := testutil.NewMockCompleter().On("gemini", testutil.Reply(`{
  "destination": "Kyoto",
  "days": [
    {"day": 1, "activities": [{"name": "Kiyomizu-dera"}]},
    {"day": 3, "activities": [{"name": "Dotonbori"}]}
  ]
}`))
	e := newEngine(testRegistry("gemini"), mock)

	res := e.RegenerateItinerary(t.Context(), kansaiItinerary(), chat("skip day 2"))

	assert.False(t, res.Success)
	assert.Nil(t, res.Itinerary)
	assert.Contains(t, res.Error, "not numbered 1..N")
}

func TestRegenerateItinerary_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		current *itinerary.Itinerary
		history []itinerary.ChatMessage
	}{
		{name: "nil itinerary", current: nil, history: chat("more food")},
		{name: "no days", current: &itinerary.Itinerary{ID: "empty"}, history: chat("more food")},
		{name: "empty history", current: kansaiItinerary(), history: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockCompleter().On("gemini", tripResponder("Kyoto"))
			e := newEngine(testRegistry("gemini"), mock)

			res := e.RegenerateItinerary(t.Context(), tt.current, tt.history)

			assert.False(t, res.Success)
			assert.ErrorIs(t, res.Err(), itinerary.ErrInvalidRequest)
			assert.Zero(t, mock.CallCount("gemini"))
		})
	}
}

func TestRegenerateItinerary_NoConfiguredProvider(t *testing.T) {
	mock := testutil.NewMockCompleter()
	e := newEngine(testRegistry(), mock)

	res := e.RegenerateItinerary(t.Context(), kansaiItinerary(), chat("more food"))

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err(), ErrConfiguration)
}

func TestNoteMetrics_LogsRejectedRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := New(testRegistry("gemini"), testutil.NewMockCompleter(), WithLogger(logger))

	c := metrics.NewCollector()
	e.noteMetrics(c.RecordOutline(0))
	e.noteMetrics(nil)

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("Metrics record skipped")))
	assert.Contains(t, buf.String(), metrics.ErrNotStarted.Error())
}
