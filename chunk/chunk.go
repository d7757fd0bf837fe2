// Package chunk splits a trip into day ranges, generates them concurrently
// and merges the results back into one ordered day list.
package chunk

import (
	"errors"
	"fmt"
	"sort"

	"github.com/c360studio/tripgen/itinerary"
)

// ErrIncompleteItinerary is returned when merged chunks do not cover 1..N exactly.
var ErrIncompleteItinerary = errors.New("incomplete itinerary")

// DefaultSize is the number of days per chunk.
const DefaultSize = 1

// Split divides [1..totalDays] into contiguous chunks of at most size days.
// A size below one is treated as one.
func Split(totalDays, size int) []itinerary.Chunk {
	if totalDays < 1 {
		return nil
	}
	size = max(size, 1)

	chunks := make([]itinerary.Chunk, 0, (totalDays+size-1)/size)
	for start := 1; start <= totalDays; start += size {
		chunks = append(chunks, itinerary.Chunk{Start: start, End: min(start+size-1, totalDays)})
	}
	return chunks
}

// StartingLocation is the overnight location of the day before the chunk,
// empty for the first chunk or when the outline does not say.
func StartingLocation(outline *itinerary.Outline, c itinerary.Chunk) string {
	if c.Start <= 1 {
		return ""
	}
	prev, ok := outline.Day(c.Start - 1)
	if !ok {
		return ""
	}
	return prev.OvernightLocation
}

// Merge concatenates chunk results in any order, sorts them by day and checks
// that days are exactly 1..totalDays.
func Merge(results [][]itinerary.DayPlan, totalDays int) ([]itinerary.DayPlan, error) {
	var merged []itinerary.DayPlan
	for _, r := range results {
		merged = append(merged, r...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Day < merged[j].Day })

	if len(merged) != totalDays {
		return nil, fmt.Errorf("%w: got %d days, want %d", ErrIncompleteItinerary, len(merged), totalDays)
	}
	for i, d := range merged {
		if d.Day != i+1 {
			return nil, fmt.Errorf("%w: day %d at position %d", ErrIncompleteItinerary, d.Day, i+1)
		}
	}
	return merged, nil
}
