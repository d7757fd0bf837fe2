// Package metrics records per-generation timings and quality signals and
// flushes them to a store in the background.
package metrics

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotStarted is returned when recording before Start.
	ErrNotStarted = errors.New("metrics collector not started")

	// ErrFinalized is returned when recording after Finalize.
	ErrFinalized = errors.New("metrics collector already finalized")
)

// StepTiming is one named step's duration.
type StepTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
}

// GenerationMetrics is the record written to the store.
type GenerationMetrics struct {
	GenerationID string    `json:"generation_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`

	Total   time.Duration `json:"total_ns"`
	Outline time.Duration `json:"outline_ns"`
	Details time.Duration `json:"details_ns"`
	Steps   []StepTiming  `json:"steps,omitempty"`

	// ValidationPassRate and CitationRate are nil when not measured.
	ValidationPassRate *float64 `json:"validation_pass_rate,omitempty"`
	CorrectionCount    int      `json:"correction_count"`
	CitationRate       *float64 `json:"citation_rate,omitempty"`
	RAGArticles        int      `json:"rag_articles"`

	Model         string `json:"model,omitempty"`
	Strategy      string `json:"strategy,omitempty"`
	Destination   string `json:"destination"`
	Days          int    `json:"days"`
	PromptVersion string `json:"prompt_version,omitempty"`
	Success       bool   `json:"success"`
}

// State is the collector lifecycle position.
type State int

const (
	StateIdle State = iota
	StateStarted
	StateFinalized
	StateFlushed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarted:
		return "started"
	case StateFinalized:
		return "finalized"
	case StateFlushed:
		return "flushed"
	}
	return "unknown"
}

// Collector accumulates one generation's metrics. Records may arrive in any
// order from several goroutines; once finalized the record is frozen.
type Collector struct {
	mu    sync.Mutex
	state State
	m     GenerationMetrics
	now   func() time.Time
}

// NewCollector creates an idle collector.
func NewCollector() *Collector {
	return &Collector{now: time.Now}
}

// Start begins a generation record.
func (c *Collector) Start(generationID, destination string, days int, promptVersion string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return errors.New("metrics collector already started")
	}
	c.state = StateStarted
	c.m = GenerationMetrics{
		GenerationID:  generationID,
		StartedAt:     c.now(),
		Destination:   destination,
		Days:          days,
		PromptVersion: promptVersion,
	}
	return nil
}

// record applies fn while the collector is started.
func (c *Collector) record(fn func(m *GenerationMetrics)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateIdle:
		return ErrNotStarted
	case StateFinalized, StateFlushed:
		return ErrFinalized
	}
	fn(&c.m)
	return nil
}

// RecordOutline records the outline phase duration.
func (c *Collector) RecordOutline(d time.Duration) error {
	return c.record(func(m *GenerationMetrics) { m.Outline = d })
}

// RecordDetails records the day-details phase duration.
func (c *Collector) RecordDetails(d time.Duration) error {
	return c.record(func(m *GenerationMetrics) { m.Details = d })
}

// RecordValidation records the spot validation pass rate and correction count.
func (c *Collector) RecordValidation(passRate float64, corrections int) error {
	return c.record(func(m *GenerationMetrics) {
		m.ValidationPassRate = &passRate
		m.CorrectionCount = corrections
	})
}

// RecordCitationRate records the share of activities with a source tag.
func (c *Collector) RecordCitationRate(rate float64) error {
	return c.record(func(m *GenerationMetrics) { m.CitationRate = &rate })
}

// RecordRAGArticles records how many retrieval articles fed the prompts.
func (c *Collector) RecordRAGArticles(n int) error {
	return c.record(func(m *GenerationMetrics) { m.RAGArticles = n })
}

// RecordStep appends a step timing.
func (c *Collector) RecordStep(name string, d time.Duration) error {
	return c.record(func(m *GenerationMetrics) {
		m.Steps = append(m.Steps, StepTiming{Name: name, Duration: d})
	})
}

// RecordModel records the model and strategy that produced the itinerary.
func (c *Collector) RecordModel(model, strategy string) error {
	return c.record(func(m *GenerationMetrics) {
		if model != "" {
			m.Model = model
		}
		if strategy != "" {
			m.Strategy = strategy
		}
	})
}

// Finalize computes the total time and freezes the record.
func (c *Collector) Finalize(success bool) (GenerationMetrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateIdle:
		return GenerationMetrics{}, ErrNotStarted
	case StateFinalized, StateFlushed:
		return GenerationMetrics{}, ErrFinalized
	}

	c.state = StateFinalized
	c.m.FinishedAt = c.now()
	c.m.Total = c.m.FinishedAt.Sub(c.m.StartedAt)
	c.m.Success = success
	return c.snapshotLocked(), nil
}

// Snapshot returns a copy of the current record.
func (c *Collector) Snapshot() GenerationMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Collector) snapshotLocked() GenerationMetrics {
	cp := c.m
	cp.Steps = append([]StepTiming(nil), c.m.Steps...)
	if c.m.ValidationPassRate != nil {
		v := *c.m.ValidationPassRate
		cp.ValidationPassRate = &v
	}
	if c.m.CitationRate != nil {
		v := *c.m.CitationRate
		cp.CitationRate = &v
	}
	return cp
}

// State returns the lifecycle position.
func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// markFlushed moves a finalized collector to flushed.
func (c *Collector) markFlushed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateFinalized {
		return false
	}
	c.state = StateFlushed
	return true
}
