package chunk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/strategy"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		days int
		size int
		want []itinerary.Chunk
	}{
		{"one per day", 3, 1, []itinerary.Chunk{{Start: 1, End: 1}, {Start: 2, End: 2}, {Start: 3, End: 3}}},
		{"uneven", 5, 2, []itinerary.Chunk{{Start: 1, End: 2}, {Start: 3, End: 4}, {Start: 5, End: 5}}},
		{"larger than trip", 2, 7, []itinerary.Chunk{{Start: 1, End: 2}}},
		{"zero size", 2, 0, []itinerary.Chunk{{Start: 1, End: 1}, {Start: 2, End: 2}}},
		{"no days", 0, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.days, tt.size))
		})
	}
}

func TestSplitMergeRoundTrip(t *testing.T) {
	for days := 1; days <= 12; days++ {
		for size := 1; size <= 4; size++ {
			chunks := Split(days, size)

			results := make([][]itinerary.DayPlan, 0, len(chunks))
			for _, c := range slices.Backward(chunks) {
				var plans []itinerary.DayPlan
				for d := c.End; d >= c.Start; d-- {
					plans = append(plans, itinerary.DayPlan{Day: d})
				}
				results = append(results, plans)
			}

			merged, err := Merge(results, days)
			require.NoError(t, err, "days=%d size=%d", days, size)
			for i, d := range merged {
				assert.Equal(t, i+1, d.Day)
			}
		}
	}
}

func TestMerge_Incomplete(t *testing.T) {
	tests := []struct {
		name    string
		results [][]itinerary.DayPlan
		total   int
	}{
		{"gap", [][]itinerary.DayPlan{{{Day: 1}}, {{Day: 3}}}, 2},
		{"duplicate", [][]itinerary.DayPlan{{{Day: 1}}, {{Day: 1}}}, 2},
		{"missing", [][]itinerary.DayPlan{{{Day: 1}}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Merge(tt.results, tt.total)
			assert.ErrorIs(t, err, ErrIncompleteItinerary)
		})
	}
}

func TestStartingLocation(t *testing.T) {
	outline := &itinerary.Outline{Days: []itinerary.OutlineDay{
		{Day: 1, OvernightLocation: "Tokyo"},
		{Day: 2, OvernightLocation: ""},
		{Day: 3, OvernightLocation: "Kyoto"},
	}}

	assert.Empty(t, StartingLocation(outline, itinerary.Chunk{Start: 1, End: 1}))
	assert.Equal(t, "Tokyo", StartingLocation(outline, itinerary.Chunk{Start: 2, End: 2}))
	assert.Empty(t, StartingLocation(outline, itinerary.Chunk{Start: 3, End: 3}))
	assert.Equal(t, "Kyoto", StartingLocation(outline, itinerary.Chunk{Start: 4, End: 5}))
	assert.Empty(t, StartingLocation(nil, itinerary.Chunk{Start: 2, End: 2}))
}

// fakeStrategy answers ProduceDayDetails with one plan per chunk day.
type fakeStrategy struct {
	mu        sync.Mutex
	starts    map[int]string
	failStart int
	delay     func(c itinerary.Chunk) time.Duration
	completed atomic.Int32
}

func (f *fakeStrategy) Name() string { return "fake" }

func (f *fakeStrategy) ProduceOutline(context.Context, strategy.GenContext) (*itinerary.Outline, error) {
	return nil, errors.New("not used")
}

func (f *fakeStrategy) ProduceDayDetails(_ context.Context, _ strategy.GenContext, d strategy.DayRequest) ([]itinerary.DayPlan, error) {
	if f.delay != nil {
		time.Sleep(f.delay(d.Chunk))
	}
	defer f.completed.Add(1)

	f.mu.Lock()
	f.starts[d.Chunk.Start] = d.StartingLocation
	f.mu.Unlock()

	if d.Chunk.Start == f.failStart {
		return nil, errors.New("provider exploded")
	}
	var out []itinerary.DayPlan
	for day := d.Chunk.Start; day <= d.Chunk.End; day++ {
		out = append(out, itinerary.DayPlan{Day: day, Activities: []itinerary.Activity{{Name: "x"}}})
	}
	return out, nil
}

func newFake() *fakeStrategy {
	return &fakeStrategy{starts: map[int]string{}}
}

func quietCoordinator(cfg Config) *Coordinator {
	return NewCoordinator(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func threeDayOutline() *itinerary.Outline {
	return &itinerary.Outline{Days: []itinerary.OutlineDay{
		{Day: 1, OvernightLocation: "Tokyo"},
		{Day: 2, OvernightLocation: "Osaka"},
		{Day: 3, OvernightLocation: "Kyoto"},
	}}
}

func TestCoordinator_Generate(t *testing.T) {
	fake := newFake()
	// Later chunks finish first.
	fake.delay = func(c itinerary.Chunk) time.Duration { return time.Duration(4-c.Start) * 5 * time.Millisecond }

	var gens atomic.Int32
	days, err := quietCoordinator(Config{Size: 1}).Generate(t.Context(), Job{
		Strategy:  fake,
		Outline:   threeDayOutline(),
		TotalDays: 3,
		NewGen: func(itinerary.Chunk) strategy.GenContext {
			gens.Add(1)
			return strategy.GenContext{}
		},
	})

	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{days[0].Day, days[1].Day, days[2].Day})
	assert.EqualValues(t, 3, gens.Load(), "one selection per chunk")
	assert.Equal(t, map[int]string{1: "", 2: "Tokyo", 3: "Osaka"}, fake.starts)
}

func TestCoordinator_ChunkFailureWaitsForSiblings(t *testing.T) {
	fake := newFake()
	fake.failStart = 1
	fake.delay = func(c itinerary.Chunk) time.Duration {
		if c.Start == 1 {
			return 0
		}
		return 20 * time.Millisecond
	}

	var settled atomic.Int32
	_, err := quietCoordinator(Config{}).Generate(t.Context(), Job{
		Strategy:  fake,
		Outline:   threeDayOutline(),
		TotalDays: 3,
		NewGen:    func(itinerary.Chunk) strategy.GenContext { return strategy.GenContext{} },
		OnChunk:   func(itinerary.Chunk, time.Duration, error) { settled.Add(1) },
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "days 1-1")
	assert.EqualValues(t, 3, fake.completed.Load(), "every chunk settles before the error returns")
	assert.EqualValues(t, 3, settled.Load())
}

func TestCoordinator_MultiDayChunks(t *testing.T) {
	fake := newFake()
	days, err := quietCoordinator(Config{Size: 2, MaxConcurrency: 1}).Generate(t.Context(), Job{
		Strategy:  fake,
		Outline:   threeDayOutline(),
		TotalDays: 3,
		NewGen:    func(itinerary.Chunk) strategy.GenContext { return strategy.GenContext{} },
	})

	require.NoError(t, err)
	assert.Len(t, days, 3)
	assert.Equal(t, map[int]string{1: "", 3: "Osaka"}, fake.starts)
}
