package itinerary

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutline(t *testing.T) {
	content := "```json\n" + `{
  "destination": "Kansai",
  "description": "Temples and food",
  "days": [
    {"day": 2, "overnight_location": " Kyoto ", "travel_method_to_next": "Shinkansen"},
    {"day": 1, "overnight_location": "Osaka", "travel_method_to_next": "JR rapid train"}
  ]
}` + "\n```"

	out, err := ParseOutline(content, 2)
	require.NoError(t, err)

	require.Len(t, out.Days, 2)
	assert.Equal(t, 1, out.Days[0].Day)
	assert.Equal(t, 2, out.Days[1].Day)
	assert.Equal(t, "Kyoto", out.Days[1].OvernightLocation)

	d, ok := out.Day(1)
	require.True(t, ok)
	assert.Equal(t, "Osaka", d.OvernightLocation)
	assert.Len(t, out.Slice(2, 5), 1)
}

func TestParseOutline_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no json", "I cannot help with that."},
		{"no days", `{"destination": "Kyoto", "days": []}`},
		{"day out of range", `{"days": [{"day": 4, "overnight_location": "Kyoto"}]}`},
		{"broken json", `{"days": [{"day": "one"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOutline(tt.content, 3)
			assert.Error(t, err)
		})
	}
}

func TestParseDayPlans(t *testing.T) {
	tests := []struct {
		name    string
		content string
		chunk   Chunk
		wantErr bool
		wantDay int
	}{
		{
			name:    "wrapped object",
			content: `{"days": [{"day": 2, "title": "Kyoto", "activities": [{"time": "09:00", "name": "Fushimi Inari"}]}]}`,
			chunk:   Chunk{Start: 2, End: 2},
			wantDay: 2,
		},
		{
			name:    "bare array with prose",
			content: "Here you go:\n[{\"title\": \"Nara\", \"activities\": [{\"time\": \"10:00\", \"name\": \"Todai-ji\"}]}]",
			chunk:   Chunk{Start: 3, End: 3},
			wantDay: 3,
		},
		{
			name:    "single day object",
			content: `{"day": 1, "title": "Arrival", "activities": [{"time": "15:00", "name": "Check in"}]}`,
			chunk:   Chunk{Start: 1, End: 1},
			wantDay: 1,
		},
		{
			name:    "wrong count",
			content: `{"days": []}`,
			chunk:   Chunk{Start: 1, End: 1},
			wantErr: true,
		},
		{
			name:    "day outside chunk",
			content: `{"days": [{"day": 5, "activities": [{"name": "x"}]}]}`,
			chunk:   Chunk{Start: 1, End: 1},
			wantErr: true,
		},
		{
			name:    "activity without name",
			content: `{"days": [{"day": 1, "activities": [{"time": "09:00"}]}]}`,
			chunk:   Chunk{Start: 1, End: 1},
			wantErr: true,
		},
		{
			name: "duplicate day",
			content: `{"days": [
				{"day": 1, "activities": [{"name": "a"}]},
				{"day": 1, "activities": [{"name": "b"}]}
			]}`,
			chunk:   Chunk{Start: 1, End: 2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, err := ParseDayPlans(tt.content, tt.chunk)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, days, 1)
			assert.Equal(t, tt.wantDay, days[0].Day)
		})
	}
}

func TestParseDayPlans_MarksAITransit(t *testing.T) {
	content := `{"days": [{"day": 2, "activities": [{"name": "Walk"}],
		"transit": {"mode": "train", "departure": {"place": "Osaka"}, "arrival": {"place": "Kyoto"}}}]}`

	days, err := ParseDayPlans(content, Chunk{Start: 2, End: 2})
	require.NoError(t, err)
	require.NotNil(t, days[0].Transit)
	assert.Equal(t, TransitFromAI, days[0].Transit.Origin)
}

func TestParseReview(t *testing.T) {
	content := `{"overall_score": 62, "issues": [
		{"day": 2, "category": "Geographic", "severity": "CRITICAL", "description": "Backtracks to Osaka"},
		{"category": "vibes", "severity": "meh", "description": "Bland"}
	], "strengths": ["Good pacing"]}`

	r, err := ParseReview(content)
	require.NoError(t, err)

	assert.Equal(t, 62, r.OverallScore)
	require.Len(t, r.Issues, 2)
	assert.Equal(t, CategoryGeographic, r.Issues[0].Category)
	assert.Equal(t, SeverityCritical, r.Issues[0].Severity)
	require.NotNil(t, r.Issues[0].Day)
	assert.Equal(t, 2, *r.Issues[0].Day)
	assert.Equal(t, CategoryQuality, r.Issues[1].Category)
	assert.Equal(t, SeverityMinor, r.Issues[1].Severity)
	assert.True(t, r.HasCritical())

	_, err = ParseReview(`{"overall_score": 140}`)
	assert.Error(t, err)
}

func TestParseItinerary(t *testing.T) {
	content := `{"destination": "Kyoto", "days": [
		{"day": 2, "activities": [{"name": "Kiyomizu-dera"}]},
		{"day": 1, "activities": [{"name": "Nishiki Market"}]}
	]}`

	it, err := ParseItinerary(content)
	require.NoError(t, err)
	require.Len(t, it.Days, 2)
	assert.Equal(t, 1, it.Days[0].Day)
	assert.Equal(t, "Nishiki Market", it.Days[0].Activities[0].Name)
}

func TestItineraryClone(t *testing.T) {
	orig := &Itinerary{
		Destination: "Kyoto",
		Days: []DayPlan{{
			Day:        1,
			Activities: []Activity{{Name: "Ginkaku-ji"}},
			Transit:    &Transit{Mode: ModeTrain},
		}},
		HeroImage: &Image{URL: "https://img.example/1.jpg"},
	}

	cp := orig.Clone()
	cp.Days[0].Activities[0].Name = "changed"
	cp.Days[0].Transit.Mode = ModeBus
	cp.HeroImage.URL = "changed"

	assert.Equal(t, "Ginkaku-ji", orig.Days[0].Activities[0].Name)
	assert.Equal(t, ModeTrain, orig.Days[0].Transit.Mode)
	assert.Equal(t, "https://img.example/1.jpg", orig.HeroImage.URL)
}

func TestPreview_RuneBoundary(t *testing.T) {
	long := strings.Repeat("京都", 150)

	got := preview(long)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, previewRunes, utf8.RuneCountInString(got))
	assert.Equal(t, "short", preview("short"))
}

func TestParseItinerary_ErrorQuotesValidUTF8(t *testing.T) {
	_, err := ParseItinerary(`{"days": ` + strings.Repeat("清水寺", 100) + `}`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse itinerary JSON")
	assert.True(t, utf8.ValidString(err.Error()))
}
