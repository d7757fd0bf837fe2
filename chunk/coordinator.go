package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/strategy"
)

// Config configures chunking.
type Config struct {
	// Size is the number of days per chunk.
	Size int `yaml:"chunk_size" validate:"min=0"`

	// MaxConcurrency bounds in-flight chunk calls. Zero means unbounded.
	MaxConcurrency int `yaml:"max_concurrency" validate:"min=0"`
}

// Coordinator fans chunk generation out and joins on every chunk.
type Coordinator struct {
	config Config
	logger *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a coordinator.
func NewCoordinator(cfg Config, opts ...Option) *Coordinator {
	if cfg.Size < 1 {
		cfg.Size = DefaultSize
	}
	c := &Coordinator{config: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Job is one generation's day-detail work.
type Job struct {
	Strategy  strategy.Strategy
	Outline   *itinerary.Outline
	TotalDays int

	// NewGen returns the context for one chunk. It is called once per chunk
	// so every chunk gets its own model selection.
	NewGen func(c itinerary.Chunk) strategy.GenContext

	// OnChunk, if set, is called after each chunk settles.
	OnChunk func(c itinerary.Chunk, elapsed time.Duration, err error)
}

// Generate runs every chunk concurrently and returns the merged, sorted days.
// All chunks are awaited; the first chunk error fails the whole generation.
func (c *Coordinator) Generate(ctx context.Context, job Job) ([]itinerary.DayPlan, error) {
	chunks := Split(job.TotalDays, c.config.Size)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no days to generate", ErrIncompleteItinerary)
	}

	results := make([][]itinerary.DayPlan, len(chunks))

	// No WithContext: a failing chunk must not cancel its siblings.
	var g errgroup.Group
	if c.config.MaxConcurrency > 0 {
		g.SetLimit(c.config.MaxConcurrency)
	}

	for i, ch := range chunks {
		g.Go(func() error {
			started := time.Now()
			days, err := job.Strategy.ProduceDayDetails(ctx, job.NewGen(ch), strategy.DayRequest{
				Outline:          job.Outline,
				Chunk:            ch,
				OutlineDays:      job.Outline.Slice(ch.Start, ch.End),
				StartingLocation: StartingLocation(job.Outline, ch),
			})
			elapsed := time.Since(started)
			if job.OnChunk != nil {
				job.OnChunk(ch, elapsed, err)
			}
			if err != nil {
				c.logger.Warn("Chunk generation failed",
					"chunk_start", ch.Start,
					"chunk_end", ch.End,
					"duration", elapsed,
					"error", err)
				return fmt.Errorf("days %d-%d: %w", ch.Start, ch.End, err)
			}

			c.logger.Debug("Chunk generated",
				"chunk_start", ch.Start,
				"chunk_end", ch.End,
				"duration", elapsed)
			results[i] = days
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(results, job.TotalDays)
}
