package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
	"github.com/c360studio/tripgen/llm/testutil"
	"github.com/c360studio/tripgen/metrics"
	"github.com/c360studio/tripgen/model"
	"github.com/c360studio/tripgen/retrieval"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(configured ...string) *model.Registry {
	endpoints := map[string]model.EndpointConfig{
		"gemini": {Provider: "gemini", Models: model.TierModels{Standard: "gemini-flash", Premium: "gemini-pro"}},
		"openai": {Provider: "openai", Models: model.TierModels{Standard: "gpt-mini"}},
	}
	for _, name := range configured {
		ep := endpoints[name]
		ep.APIKey = "key-" + name
		endpoints[name] = ep
	}
	return model.NewRegistry(model.RegistryConfig{
		Primary:   "gemini",
		Alternate: "openai",
		Endpoints: endpoints,
	})
}

var chunkRangeRe = regexp.MustCompile(`numbered (\d+)\.\.(\d+)`)

// tripResponder answers outline, details and modify prompts for a trip
// through the given overnight places.
func tripResponder(places ...string) testutil.Responder {
	return testutil.Func(func(req llm.Request) (string, error) {
		last := req.Messages[len(req.Messages)-1].Content
		switch {
		case strings.Contains(last, "Create the outline"):
			var days []string
			for i, p := range places {
				method := ""
				if i+1 < len(places) && places[i+1] != p {
					method = "Shinkansen"
				}
				days = append(days, fmt.Sprintf(`{"day": %d, "overnight_location": %q, "travel_method_to_next": %q}`, i+1, p, method))
			}
			return fmt.Sprintf(`{"destination": %q, "description": "A trip", "days": [%s]}`, places[0], strings.Join(days, ",")), nil
		case chunkRangeRe.MatchString(last):
			m := chunkRangeRe.FindStringSubmatch(last)
			start, _ := strconv.Atoi(m[1])
			end, _ := strconv.Atoi(m[2])
			var days []string
			for d := start; d <= end; d++ {
				days = append(days, fmt.Sprintf(
					`{"day": %d, "title": "Day %d", "activities": [{"time": "09:00", "name": "Spot %d", "description": "visit"}, {"time": "14:00", "name": "Cafe %d", "description": "rest", "source": "1"}]}`,
					d, d, d, d))
			}
			return fmt.Sprintf(`{"days": [%s]}`, strings.Join(days, ",")), nil
		default:
			return "", errors.New("unexpected prompt")
		}
	})
}

func newEngine(reg *model.Registry, client llm.Completer, opts ...Option) *Engine {
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	e := New(reg, client, opts...)
	e.newID = func() string { return "gen-test" }
	return e
}

func TestGenerateItinerary_SingleProviderThreeDays(t *testing.T) {
	mock := testutil.NewMockCompleter().On("gemini", tripResponder("Kyoto", "Kyoto", "Kyoto"))
	e := newEngine(testRegistry("gemini"), mock)

	res := e.GenerateItinerary(t.Context(), &itinerary.Request{Destinations: []string{"Kyoto"}, Days: 3}, GenerateOptions{})

	require.True(t, res.Success, res.Error)
	var dayNumbers []int
	for _, d := range res.Itinerary.Days {
		dayNumbers = append(dayNumbers, d.Day)
	}
	assert.Equal(t, []int{1, 2, 3}, dayNumbers)
	assert.Equal(t, "single", res.Itinerary.Strategy)
	assert.Equal(t, "gemini-flash", res.Itinerary.Model)
	assert.Equal(t, "gen-test", res.Itinerary.ID)
	assert.Equal(t, 4, mock.CallCount("gemini"), "one outline call and three chunk calls")
	assert.Zero(t, mock.CallCount("openai"))
}

func TestGenerateItinerary_MultiCityRequest(t *testing.T) {
	req := &itinerary.Request{Destinations: []string{"Tokyo→Osaka→Kyoto"}, Days: 3}
	assert.True(t, itinerary.ComplexityOf(req).IsMultiCity)

	mock := testutil.NewMockCompleter().On("gemini", tripResponder("Tokyo", "Osaka", "Kyoto"))
	res := newEngine(testRegistry("gemini"), mock).GenerateItinerary(t.Context(), req, GenerateOptions{})

	require.True(t, res.Success, res.Error)
	require.Len(t, res.Itinerary.Days, 3)
	assert.Nil(t, res.Itinerary.Days[0].Transit)
	require.NotNil(t, res.Itinerary.Days[1].Transit)
	assert.Equal(t, itinerary.ModeTrain, res.Itinerary.Days[1].Transit.Mode)
	assert.Equal(t, itinerary.TransitFromInferred, res.Itinerary.Days[1].Transit.Origin)
	assert.Equal(t, "Tokyo", res.Itinerary.Days[1].Transit.Departure.Place)
}

func TestGenerateItinerary_UserTransitWins(t *testing.T) {
	override := itinerary.Transit{Mode: itinerary.ModeBus, Departure: itinerary.Endpoint{Place: "Tokyo", Time: "07:00"}}
	req := &itinerary.Request{
		Destinations:     []string{"Tokyo", "Osaka"},
		Days:             2,
		TransitOverrides: map[int]itinerary.Transit{2: override},
	}
	mock := testutil.NewMockCompleter().On("gemini", tripResponder("Tokyo", "Osaka"))

	res := newEngine(testRegistry("gemini"), mock).GenerateItinerary(t.Context(), req, GenerateOptions{})

	require.True(t, res.Success, res.Error)
	got := res.Itinerary.Days[1].Transit
	require.NotNil(t, got)
	assert.Equal(t, itinerary.ModeBus, got.Mode)
	assert.Equal(t, itinerary.TransitFromUser, got.Origin)
}

func TestGenerateItinerary_Failures(t *testing.T) {
	tests := []struct {
		name    string
		reg     *model.Registry
		mock    *testutil.MockCompleter
		req     *itinerary.Request
		wantErr string
	}{
		{
			name:    "nil request",
			reg:     testRegistry("gemini"),
			mock:    testutil.NewMockCompleter(),
			wantErr: "nil request",
		},
		{
			name:    "invalid request",
			reg:     testRegistry("gemini"),
			mock:    testutil.NewMockCompleter(),
			req:     &itinerary.Request{Days: 2},
			wantErr: "invalid request",
		},
		{
			name:    "no provider configured",
			reg:     testRegistry(),
			mock:    testutil.NewMockCompleter(),
			req:     &itinerary.Request{Destinations: []string{"Kyoto"}, Days: 1},
			wantErr: "configuration error",
		},
		{
			name:    "chunk failure fails generation",
			reg:     testRegistry("gemini"),
			mock:    testutil.NewMockCompleter().On("gemini", testutil.Reply(`{"destination": "Kyoto", "description": "x", "days": [{"day": 1, "overnight_location": "Kyoto"}, {"day": 2, "overnight_location": "Kyoto"}]}`), testutil.Fail(llm.NewFatalError(errors.New("quota exceeded")))),
			req:     &itinerary.Request{Destinations: []string{"Kyoto"}, Days: 2},
			wantErr: "quota exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newEngine(tt.reg, tt.mock).GenerateItinerary(t.Context(), tt.req, GenerateOptions{})
			assert.False(t, res.Success)
			assert.Nil(t, res.Itinerary)
			assert.Contains(t, strings.ToLower(res.Error), tt.wantErr)
		})
	}

	t.Run("configuration error makes no calls", func(t *testing.T) {
		mock := testutil.NewMockCompleter()
		newEngine(testRegistry(), mock).GenerateItinerary(t.Context(), &itinerary.Request{Destinations: []string{"Kyoto"}, Days: 1}, GenerateOptions{})
		assert.Empty(t, mock.Calls())
	})
}

type stubValidator struct {
	failed []itinerary.FailedSpot
	err    error
}

func (v stubValidator) Validate(context.Context, *itinerary.Itinerary) ([]itinerary.FailedSpot, error) {
	return v.failed, v.err
}

func TestGenerateItinerary_SelfCorrection(t *testing.T) {
	fixed := `{"destination": "Kyoto", "description": "A trip", "days": [` +
		`{"day": 1, "title": "Day 1", "activities": [{"time": "09:00", "name": "Kiyomizu-dera", "description": "visit"}, {"time": "14:00", "name": "Cafe 1", "description": "rest"}]}]}`
	trip := tripResponder("Kyoto")
	mock := testutil.NewMockCompleter().On("gemini", testutil.Responder(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		if strings.Contains(req.Messages[len(req.Messages)-2].Content, "could not be verified") {
			return testutil.Reply(fixed)(ctx, req)
		}
		return trip(ctx, req)
	}))

	store := &captureStore{}
	flusher := metrics.NewFlusher(store, 4, metrics.WithLogger(quietLogger()))
	e := newEngine(testRegistry("gemini"), mock,
		WithFlusher(flusher),
		WithSpotValidator(stubValidator{failed: []itinerary.FailedSpot{{Day: 1, ActivityIndex: 0, ActivityName: "Spot 1", Reason: "closed"}}}),
	)

	res := e.GenerateItinerary(t.Context(), &itinerary.Request{Destinations: []string{"Kyoto"}, Days: 1}, GenerateOptions{})
	require.True(t, res.Success, res.Error)

	first := res.Itinerary.Days[0].Activities[0]
	assert.Equal(t, "Kiyomizu-dera", first.Name)
	assert.Equal(t, itinerary.SourceCorrected, first.Source)
	assert.Equal(t, "Cafe 1", res.Itinerary.Days[0].Activities[1].Name)

	require.NoError(t, flusher.Close(context.Background()))
	recs := store.all()
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].CorrectionCount)
	require.NotNil(t, recs[0].ValidationPassRate)
	assert.InDelta(t, 0.5, *recs[0].ValidationPassRate, 1e-9)
	assert.True(t, recs[0].Success)
}

func TestGenerateItinerary_ValidatorErrorKeepsItinerary(t *testing.T) {
	mock := testutil.NewMockCompleter().On("gemini", tripResponder("Kyoto"))
	e := newEngine(testRegistry("gemini"), mock, WithSpotValidator(stubValidator{err: errors.New("places API down")}))

	res := e.GenerateItinerary(t.Context(), &itinerary.Request{Destinations: []string{"Kyoto"}, Days: 1}, GenerateOptions{})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Spot 1", res.Itinerary.Days[0].Activities[0].Name)
	assert.Equal(t, 2, mock.CallCount("gemini"))
}

type stubSearcher struct{ articles []retrieval.Article }

func (s stubSearcher) Search(context.Context, string, int) ([]retrieval.Article, error) {
	return s.articles, nil
}

type stubImages struct {
	img *itinerary.Image
	err error
}

func (s stubImages) Lookup(context.Context, string) (*itinerary.Image, error) {
	return s.img, s.err
}

func TestGenerateItinerary_RetrievalAndHeroImage(t *testing.T) {
	var (
		mu       sync.Mutex
		sawRefer bool
	)
	trip := tripResponder("Kyoto")
	mock := testutil.NewMockCompleter().On("gemini", testutil.Responder(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		if strings.Contains(req.Messages[len(req.Messages)-1].Content, "Gion guide") {
			mu.Lock()
			sawRefer = true
			mu.Unlock()
		}
		return trip(ctx, req)
	}))

	tests := []struct {
		name   string
		images stubImages
		want   string
	}{
		{name: "lookup result", images: stubImages{img: &itinerary.Image{URL: "hero.jpg"}}, want: "hero.jpg"},
		{name: "lookup failure falls back", images: stubImages{err: errors.New("429")}, want: "article.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(testRegistry("gemini"), mock,
				WithSearcher(stubSearcher{articles: []retrieval.Article{{Title: "Gion guide", URL: "https://example.com/gion", Snippet: "Walk Hanamikoji.", Image: &itinerary.Image{URL: "article.jpg"}}}}),
				WithImageLookup(tt.images),
			)

			res := e.GenerateItinerary(t.Context(), &itinerary.Request{Destinations: []string{"Kyoto"}, Days: 1}, GenerateOptions{FetchHeroImage: true, TopK: 3})

			require.True(t, res.Success, res.Error)
			require.NotNil(t, res.Itinerary.HeroImage)
			assert.Equal(t, tt.want, res.Itinerary.HeroImage.URL)
			assert.Equal(t, []itinerary.Reference{{Title: "Gion guide", URL: "https://example.com/gion"}}, res.Itinerary.References)
		})
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, sawRefer, "reference material reaches the prompts")
}

func TestGenerateItinerary_NoHeroImageUnlessRequested(t *testing.T) {
	mock := testutil.NewMockCompleter().On("gemini", tripResponder("Kyoto"))
	e := newEngine(testRegistry("gemini"), mock, WithImageLookup(stubImages{img: &itinerary.Image{URL: "hero.jpg"}}))

	res := e.GenerateItinerary(t.Context(), &itinerary.Request{Destinations: []string{"Kyoto"}, Days: 1}, GenerateOptions{})

	require.True(t, res.Success, res.Error)
	assert.Nil(t, res.Itinerary.HeroImage)
}

func TestEngine_SetRegistry(t *testing.T) {
	mock := testutil.NewMockCompleter().On("gemini", tripResponder("Kyoto"))
	e := newEngine(testRegistry(), mock)
	req := &itinerary.Request{Destinations: []string{"Kyoto"}, Days: 1}

	assert.False(t, e.GenerateItinerary(t.Context(), req, GenerateOptions{}).Success)

	e.SetRegistry(testRegistry("gemini"))
	assert.True(t, e.GenerateItinerary(t.Context(), req, GenerateOptions{}).Success)
}

func TestEngine_RecorderCountsSteps(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	mock := testutil.NewMockCompleter().On("gemini", tripResponder("Kyoto", "Kyoto"))
	e := newEngine(testRegistry("gemini"), mock, WithRecorder(rec))

	res := e.GenerateItinerary(t.Context(), &itinerary.Request{Destinations: []string{"Kyoto"}, Days: 2}, GenerateOptions{Verbose: true})
	require.True(t, res.Success, res.Error)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["tripgen_strategy_steps_total"])
	assert.True(t, names["tripgen_chunk_duration_seconds"])
	assert.True(t, names["tripgen_generations_total"])
}

func TestCitationRate(t *testing.T) {
	it := &itinerary.Itinerary{Days: []itinerary.DayPlan{
		{Day: 1, Activities: []itinerary.Activity{{Name: "a", Source: "1"}, {Name: "b"}}},
		{Day: 2, Activities: []itinerary.Activity{{Name: "c", Source: itinerary.SourceCorrected}, {Name: "d"}}},
	}}
	assert.InDelta(t, 0.5, CitationRate(it), 1e-9)
	assert.Zero(t, CitationRate(&itinerary.Itinerary{}))
	assert.Equal(t, 4, ActivityCount(it))
}

type captureStore struct {
	mu      sync.Mutex
	records []metrics.GenerationMetrics
}

func (s *captureStore) Insert(_ context.Context, m metrics.GenerationMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, m)
	return nil
}

func (s *captureStore) Close() error { return nil }

func (s *captureStore) all() []metrics.GenerationMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]metrics.GenerationMetrics(nil), s.records...)
}
